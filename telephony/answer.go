package telephony

import (
	"encoding/xml"
	"fmt"
)

type connectStream struct {
	URL string `xml:"url,attr"`
}

type connectVerb struct {
	Stream connectStream `xml:"Stream"`
}

type voiceResponse struct {
	XMLName xml.Name    `xml:"Response"`
	Connect connectVerb `xml:"Connect"`
}

// AnswerDocument renders the webhook response that tells the carrier to open
// a bidirectional media stream to the session websocket for the given agent.
func AnswerDocument(streamBaseURL, agentId string) ([]byte, error) {
	doc := voiceResponse{
		Connect: connectVerb{
			Stream: connectStream{URL: streamBaseURL + "/" + agentId},
		},
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("rendering answer document: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
