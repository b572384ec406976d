// Package telephony integrates a Twilio-style voice provider: placing and
// ending calls over its REST API and answering inbound webhooks with the
// connect-stream instructions that route call media into a session.
package telephony

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/bt-bridge/voice-gateway/shared"
)

// Call is one provider-side call leg.
type Call struct {
	Sid    string `json:"sid"`
	From   string `json:"from"`
	To     string `json:"to"`
	Status string `json:"status"`
}

// PhoneNumber is one provisioned inbound number.
type PhoneNumber struct {
	Sid          string `json:"sid"`
	PhoneNumber  string `json:"phone_number"`
	FriendlyName string `json:"friendly_name"`
}

// Provider is the outbound-control surface of the voice carrier.
type Provider interface {
	InitiateCall(ctx context.Context, from, to, answerURL string) (*Call, error)
	HangupCall(ctx context.Context, callSid string) error
	ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error)
}

// RESTProvider talks to the carrier's HTTP API with basic auth credentials.
type RESTProvider struct {
	logger     shared.LoggerAdapter
	baseURL    string
	accountSID string
	authToken  string
	client     *fasthttp.Client
}

var _ Provider = (*RESTProvider)(nil)

func NewRESTProvider(logger shared.LoggerAdapter, baseURL, accountSID, authToken string) (*RESTProvider, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if baseURL == "" {
		baseURL = "https://api.twilio.com/2010-04-01"
	}
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("%w: telephony credentials missing", shared.ErrConfiguration)
	}
	return &RESTProvider{
		logger:     logger,
		baseURL:    baseURL,
		accountSID: accountSID,
		authToken:  authToken,
		client:     &fasthttp.Client{},
	}, nil
}

func (p *RESTProvider) authHeader() string {
	credentials := p.accountSID + ":" + p.authToken
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
}

func (p *RESTProvider) do(ctx context.Context, method, path string, form url.Values, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(p.baseURL + "/Accounts/" + p.accountSID + path)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", p.authHeader())
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBodyString(form.Encode())
	}

	errC := make(chan error)
	go func() {
		defer close(errC)
		errC <- p.client.Do(req, resp)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errC:
		if err != nil {
			return fmt.Errorf("performing HTTP request: %w", err)
		}
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), string(resp.Body()))
	}
	if out != nil {
		if err := sonic.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decoding provider response: %w", err)
		}
	}
	return nil
}

func (p *RESTProvider) InitiateCall(ctx context.Context, from, to, answerURL string) (*Call, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Url", answerURL)

	call := new(Call)
	if err := p.do(ctx, fasthttp.MethodPost, "/Calls.json", form, call); err != nil {
		return nil, fmt.Errorf("initiating call: %w", err)
	}
	p.logger.Info("call initiated", zap.String("call_sid", call.Sid), zap.String("to", to))
	return call, nil
}

func (p *RESTProvider) HangupCall(ctx context.Context, callSid string) error {
	form := url.Values{}
	form.Set("Status", "completed")
	if err := p.do(ctx, fasthttp.MethodPost, "/Calls/"+callSid+".json", form, nil); err != nil {
		return fmt.Errorf("hanging up call %s: %w", callSid, err)
	}
	p.logger.Info("call hung up", zap.String("call_sid", callSid))
	return nil
}

func (p *RESTProvider) ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	var body struct {
		IncomingPhoneNumbers []PhoneNumber `json:"incoming_phone_numbers"`
	}
	if err := p.do(ctx, fasthttp.MethodGet, "/IncomingPhoneNumbers.json", nil, &body); err != nil {
		return nil, fmt.Errorf("listing phone numbers: %w", err)
	}
	return body.IncomingPhoneNumbers, nil
}
