// Package registry maps tool names to executable handlers for the voice
// session bridge. The registry validates arguments against each tool's JSON
// schema, executes against external collaborators (CRM, scheduling) and
// always returns a structured success/failure envelope; nothing escapes its
// boundary as a raised error.
package registry

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/bt-bridge/voice-gateway/shared"
)

// Schema is the machine-readable description of one tool: its name, a
// description for the model, and a JSON schema for the argument shape.
type Schema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Result is the envelope every execution produces. Success and Error are
// authoritative; Fields carries handler output merged into the payload.
type Result struct {
	Success bool
	Error   string
	Fields  map[string]any

	failure error
}

// Failure reports the error class (shared.ErrUnknownTool,
// shared.ErrInvalidArguments, shared.ErrExecution) for failed results, nil
// otherwise.
func (r *Result) Failure() error {
	return r.failure
}

// Payload serializes the result for submission to the upstream conversation.
func (r *Result) Payload() ([]byte, error) {
	body := map[string]any{"success": r.Success}
	if r.Error != "" {
		body["error"] = r.Error
	}
	for k, v := range r.Fields {
		if k == "success" || k == "error" {
			continue
		}
		body[k] = v
	}
	return sonic.Marshal(body)
}

func failed(class error, msg string) *Result {
	return &Result{Success: false, Error: msg, failure: class}
}

// Handler executes one tool. Invoke may return an error freely; the registry
// wraps it into a failed result.
type Handler interface {
	Schema() Schema
	Invoke(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Registry is stateless after construction and safe to share read-only
// across concurrent sessions.
type Registry struct {
	logger   shared.LoggerAdapter
	handlers map[string]Handler
	schemas  map[string]*gojsonschema.Schema
}

func New(logger shared.LoggerAdapter, handlers ...Handler) (*Registry, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	r := &Registry{
		logger:   logger,
		handlers: make(map[string]Handler, len(handlers)),
		schemas:  make(map[string]*gojsonschema.Schema, len(handlers)),
	}
	for _, h := range handlers {
		schema := h.Schema()
		if schema.Name == "" {
			return nil, fmt.Errorf("handler %T has an empty tool name", h)
		}
		if _, ok := r.handlers[schema.Name]; ok {
			return nil, fmt.Errorf("duplicate tool name: %s", schema.Name)
		}
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema.Parameters))
		if err != nil {
			return nil, fmt.Errorf("compiling schema for tool %s: %w", schema.Name, err)
		}
		r.handlers[schema.Name] = h
		r.schemas[schema.Name] = compiled
	}
	return r, nil
}

// Definitions returns schemas restricted to the requested subset, in input
// order, deduplicated. Names with no registered handler are skipped.
func (r *Registry) Definitions(enabled []string) []Schema {
	seen := make(map[string]struct{}, len(enabled))
	out := make([]Schema, 0, len(enabled))
	for _, name := range enabled {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		h, ok := r.handlers[name]
		if !ok {
			r.logger.Warn("enabled tool has no handler", zap.String("tool", name))
			continue
		}
		out = append(out, h.Schema())
	}
	return out
}

// Execute runs the named tool against the raw JSON argument payload. The
// returned result is never nil and errors never propagate past this method.
func (r *Registry) Execute(ctx context.Context, name string, rawArgs []byte) (result *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool handler panicked", fmt.Errorf("%v", rec), zap.String("tool", name))
			result = failed(shared.ErrExecution, fmt.Sprintf("tool %s panicked: %v", name, rec))
		}
	}()

	h, ok := r.handlers[name]
	if !ok {
		return failed(shared.ErrUnknownTool, fmt.Sprintf("unknown tool: %s", name))
	}

	var args map[string]any
	if len(rawArgs) > 0 {
		if err := sonic.Unmarshal(rawArgs, &args); err != nil {
			return failed(shared.ErrInvalidArguments, fmt.Sprintf("arguments are not a JSON object: %v", err))
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	validation, err := r.schemas[name].Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return failed(shared.ErrInvalidArguments, fmt.Sprintf("validating arguments: %v", err))
	}
	if !validation.Valid() {
		return failed(shared.ErrInvalidArguments, validationMessage(validation))
	}

	fields, err := h.Invoke(ctx, args)
	if err != nil {
		r.logger.Warn("tool execution failed", zap.String("tool", name), zap.Error(err))
		return failed(shared.ErrExecution, err.Error())
	}
	return &Result{Success: true, Fields: fields}
}

func validationMessage(result *gojsonschema.Result) string {
	msg := "invalid arguments"
	for _, e := range result.Errors() {
		msg += ": " + e.String()
		break
	}
	return msg
}
