package bridge

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerEventDecodeFunctionCallDone(t *testing.T) {
	data := []byte(`{
		"event_id": "evt_123",
		"type": "response.function_call_arguments.done",
		"response_id": "resp_1",
		"item_id": "item_1",
		"output_index": 0,
		"call_id": "call_abc",
		"name": "lookup_contact",
		"arguments": "{\"phone\":\"+15551234567\"}"
	}`)

	event := new(ServerEvent)
	require.NoError(t, event.UnmarshalJSON(data))
	assert.Equal(t, "evt_123", event.EventId)
	assert.Equal(t, ServerEventTypeResponseFunctionCallArgumentsDone, event.Type)

	done, ok := event.FunctionCallDone()
	require.True(t, ok)
	assert.Equal(t, "call_abc", done.CallId)
	assert.Equal(t, "lookup_contact", done.Name)
	assert.Equal(t, `{"phone":"+15551234567"}`, done.Arguments)
}

func TestServerEventFunctionCallDoneOnOtherTypes(t *testing.T) {
	event := &ServerEvent{Type: ServerEventTypeResponseCreated, Param: &ServerEventParamResponseCreated{}}
	_, ok := event.FunctionCallDone()
	assert.False(t, ok)
}

func TestServerEventDecodeAudioDelta(t *testing.T) {
	data := []byte(`{
		"event_id": "evt_5",
		"type": "response.output_audio.delta",
		"response_id": "resp_1",
		"item_id": "item_2",
		"output_index": 0,
		"content_index": 0,
		"delta": "AAEC"
	}`)

	event := new(ServerEvent)
	require.NoError(t, event.UnmarshalJSON(data))
	param, ok := event.Param.(*ServerEventParamResponseOutputAudioDelta)
	require.True(t, ok)
	assert.Equal(t, "AAEC", param.Delta)
	assert.Equal(t, "item_2", param.ItemId)
}

func TestServerEventUnknownTypeKeepsFieldsVerbatim(t *testing.T) {
	data := []byte(`{
		"event_id": "evt_9",
		"type": "output_audio_buffer.started",
		"response_id": "resp_3"
	}`)

	event := new(ServerEvent)
	require.NoError(t, event.UnmarshalJSON(data))
	assert.Equal(t, ServerEventType("output_audio_buffer.started"), event.Type)

	raw, ok := event.Param.(*ServerEventParamRaw)
	require.True(t, ok)
	assert.Equal(t, "resp_3", raw.Fields["response_id"])

	// round trip preserves the original shape
	out, err := event.MarshalJSON()
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, sonic.Unmarshal(out, &body))
	assert.Equal(t, "output_audio_buffer.started", body["type"])
	assert.Equal(t, "evt_9", body["event_id"])
	assert.Equal(t, "resp_3", body["response_id"])
}

func TestServerEventDecodeError(t *testing.T) {
	data := []byte(`{
		"type": "error",
		"error": {"type": "invalid_request_error", "code": "bad", "message": "nope"}
	}`)

	event := new(ServerEvent)
	require.NoError(t, event.UnmarshalJSON(data))
	param, ok := event.Param.(*ServerEventParamError)
	require.True(t, ok)
	assert.Equal(t, "nope", param.Message)
	assert.Equal(t, "bad", param.Code)
}

func TestServerEventMarshalRequiresTypeAndParam(t *testing.T) {
	_, err := (&ServerEvent{}).MarshalJSON()
	assert.Error(t, err)

	_, err = (&ServerEvent{Type: ServerEventTypeSessionCreated}).MarshalJSON()
	assert.Error(t, err)
}

func TestClientEventMarshalAudioAppend(t *testing.T) {
	event := &ClientEvent{
		Type:  ClientEventTypeInputAudioBufferAppend,
		Param: &ClientEventParamInputAudioBufferAppend{Audio: "AAEC"},
	}
	out, err := event.MarshalJSON()
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, sonic.Unmarshal(out, &body))
	assert.Equal(t, "input_audio_buffer.append", body["type"])
	assert.Equal(t, "AAEC", body["audio"])
}

func TestClientEventDecodeRejectsUnknownType(t *testing.T) {
	event := new(ClientEvent)
	err := event.UnmarshalJSON([]byte(`{"type": "conversation.item.delete"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown client event type")
}

func TestNewFunctionCallOutputItem(t *testing.T) {
	event := NewFunctionCallOutputItem("call_abc", []byte(`{"success":true,"found":false}`))
	out, err := event.MarshalJSON()
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, sonic.Unmarshal(out, &body))
	assert.Equal(t, "conversation.item.create", body["type"])

	item, ok := body["item"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "function_call_output", item["type"])
	assert.Equal(t, "call_abc", item["call_id"])
	assert.Equal(t, `{"success":true,"found":false}`, item["output"])
}
