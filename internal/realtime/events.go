package realtime

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xpanvictor/modality/internal/types"
)

// EventType discriminates messages on the realtime socket.
type EventType string

// Client -> server event types.
const (
	EventSessionUpdate  EventType = "session.update"
	EventAudioAppend    EventType = "input_audio_buffer.append"
	EventAudioCommit    EventType = "input_audio_buffer.commit"
	EventVideoAppend    EventType = "input_video_buffer.append"
	EventVideoCommit    EventType = "input_video_buffer.commit"
	EventItemCreate     EventType = "conversation.item.create"
	EventResponseCreate EventType = "response.create"
)

// Server -> client event types.
const (
	EventSessionCreated EventType = "session.created"
	EventSessionUpdated EventType = "session.updated"
	EventAudioAppended  EventType = "input_audio_buffer.appended"
	EventAudioCleared   EventType = "input_audio_buffer.cleared"
	EventVideoAppended  EventType = "input_video_buffer.appended"
	EventVideoCleared   EventType = "input_video_buffer.cleared"
	EventItemCreated    EventType = "conversation.item.created"
	EventResponseDone   EventType = "response.done"
	EventError          EventType = "error"
)

// Error taxonomy sent to clients. Messages stay generic; detail lives
// in server logs only.
const (
	ErrTypeServer         = "server_error"
	ErrTypeInvalidRequest = "invalid_request_error"

	CodeProcessingFailed = "processing_failed"
	CodeUnknownEventType = "unknown_event_type"
	CodeInvalidJSON      = "invalid_json"
	CodeNoUserMessage    = "no_user_message"
	CodeBufferOverflow   = "buffer_limit_exceeded"
)

// ErrMalformed reports a payload that could not be decoded into a
// client event.
var ErrMalformed = errors.New("malformed client event")

// ClientEvent is the decoded form of an inbound socket message. Only
// the fields relevant to Type are populated.
type ClientEvent struct {
	EventID string
	Type    EventType
	Session SessionConfig           // session.update
	Audio   []byte                  // input_audio_buffer.append, decoded
	Video   []byte                  // input_video_buffer.append, decoded
	Item    *types.ConversationItem // conversation.item.create
}

type eventEnvelope struct {
	EventID string                  `json:"event_id"`
	Type    EventType               `json:"type"`
	Session json.RawMessage         `json:"session"`
	Audio   string                  `json:"audio"`
	Video   string                  `json:"video"`
	Item    *types.ConversationItem `json:"item"`
}

// ParseClientEvent decodes one inbound message. Unknown event types
// are not an error here; the dispatcher answers those with
// unknown_event_type so the client learns which event_id failed. On a
// malformed payload the returned event still carries the best-known
// event id so the error reply can reference it.
func ParseClientEvent(data []byte) (ClientEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ClientEvent{EventID: "error"}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	ev := ClientEvent{EventID: env.EventID, Type: env.Type}
	if ev.EventID == "" {
		ev.EventID = fmt.Sprintf("event_%d", time.Now().UnixMilli())
	}

	switch env.Type {
	case EventSessionUpdate:
		cfg := DefaultSessionConfig()
		if len(env.Session) > 0 {
			if err := json.Unmarshal(env.Session, &cfg); err != nil {
				return ev, fmt.Errorf("%w: session payload: %v", ErrMalformed, err)
			}
		}
		ev.Session = cfg
	case EventAudioAppend:
		chunk, err := base64.StdEncoding.DecodeString(env.Audio)
		if err != nil {
			return ev, fmt.Errorf("%w: audio payload: %v", ErrMalformed, err)
		}
		ev.Audio = chunk
	case EventVideoAppend:
		chunk, err := base64.StdEncoding.DecodeString(env.Video)
		if err != nil {
			return ev, fmt.Errorf("%w: video payload: %v", ErrMalformed, err)
		}
		ev.Video = chunk
	case EventItemCreate:
		if env.Item == nil {
			return ev, fmt.Errorf("%w: missing item", ErrMalformed)
		}
		ev.Item = env.Item
	}
	return ev, nil
}

// SessionLifecycleEvent announces session.created and session.updated
// with the full effective configuration.
type SessionLifecycleEvent struct {
	EventID string        `json:"event_id"`
	Type    EventType     `json:"type"`
	Session SessionConfig `json:"session"`
}

// BufferAckEvent acknowledges buffer appends and clears.
type BufferAckEvent struct {
	EventID string    `json:"event_id"`
	Type    EventType `json:"type"`
}

// ItemCreatedEvent echoes a stored conversation item back to the client.
type ItemCreatedEvent struct {
	EventID string                 `json:"event_id"`
	Type    EventType              `json:"type"`
	Item    types.ConversationItem `json:"item"`
}

// ResponseEnvelope carries a completed model turn.
type ResponseEnvelope struct {
	ID     string                   `json:"id"`
	Object string                   `json:"object"`
	Status string                   `json:"status"`
	Output []types.ConversationItem `json:"output"`
}

// ResponseDoneEvent delivers the model output for a commit or
// response.create trigger.
type ResponseDoneEvent struct {
	EventID  string           `json:"event_id"`
	Type     EventType        `json:"type"`
	Response ResponseEnvelope `json:"response"`
}

// ErrorBody is the client-facing error payload.
type ErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEvent reports a failure tied to one inbound event.
type ErrorEvent struct {
	EventID string    `json:"event_id"`
	Type    EventType `json:"type"`
	Error   ErrorBody `json:"error"`
}

func newErrorEvent(eventID, errType, code, message string) ErrorEvent {
	return ErrorEvent{
		EventID: eventID,
		Type:    EventError,
		Error:   ErrorBody{Type: errType, Code: code, Message: message},
	}
}

func newResponseDone(eventID string, output types.ConversationItem) ResponseDoneEvent {
	return ResponseDoneEvent{
		EventID: eventID,
		Type:    EventResponseDone,
		Response: ResponseEnvelope{
			ID:     "resp_" + eventID,
			Object: "realtime.response",
			Status: "completed",
			Output: []types.ConversationItem{output},
		},
	}
}
