package types

// Conversation wire types shared by the realtime protocol, the HTTP
// handlers and the archive repository. The JSON shape mirrors the
// OpenAI realtime item format so existing clients keep working.

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ContentType string

const (
	ContentText  ContentType = "text"
	ContentAudio ContentType = "audio"
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
)

// ContentPart is one typed part of a conversation item. Exactly one of
// the payload fields is set, selected by Type. Media payloads are
// base64 strings as received from the client.
type ContentPart struct {
	Type  ContentType `json:"type"`
	Text  string      `json:"text,omitempty"`
	Audio string      `json:"audio,omitempty"`
	Image string      `json:"image,omitempty"`
	Video string      `json:"video,omitempty"`
}

// MediaPayload returns the base64 payload for media parts and whether
// this part carries media at all.
func (p ContentPart) MediaPayload() (string, bool) {
	switch p.Type {
	case ContentAudio:
		return p.Audio, true
	case ContentImage:
		return p.Image, true
	case ContentVideo:
		return p.Video, true
	}
	return "", false
}

// ConversationItem is one entry of a session's conversation history.
type ConversationItem struct {
	ID      string        `json:"id"`
	Object  string        `json:"object,omitempty"`
	Type    string        `json:"type"`
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

// NewAssistantText builds the assistant reply item appended to the
// conversation after a successful response.
func NewAssistantText(id, text string) ConversationItem {
	return ConversationItem{
		ID:     id,
		Object: "realtime.item",
		Type:   "message",
		Role:   RoleAssistant,
		Content: []ContentPart{
			{Type: ContentText, Text: text},
		},
	}
}
