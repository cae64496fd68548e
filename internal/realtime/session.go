package realtime

import (
	"context"
	"time"

	"github.com/xpanvictor/modality/internal/types"
)

// Session holds the state of one realtime socket: its effective
// configuration, two media buffer tracks and the conversation history.
// All access happens on the connection's dispatch goroutine, so the
// struct carries no lock of its own.
type Session struct {
	ID        string
	CreatedAt time.Time
	Config    SessionConfig

	audio *bufferTrack
	video *bufferTrack

	conversation []types.ConversationItem
}

func newSession(id string, maxBufferBytes int) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		Config:    DefaultSessionConfig(),
		audio:     newBufferTrack(maxBufferBytes),
		video:     newBufferTrack(maxBufferBytes),
	}
}

// track selects the buffer for a modality name ("audio" or "video").
func (s *Session) track(modality string) *bufferTrack {
	if modality == "video" {
		return s.video
	}
	return s.audio
}

// AppendItem stores a conversation item, assigning an id when the
// client sent none.
func (s *Session) AppendItem(ctx context.Context, item types.ConversationItem) types.ConversationItem {
	_ = ctx
	if item.ID == "" {
		item.ID = "item_" + randomID()
	}
	if item.Object == "" {
		item.Object = "realtime.item"
	}
	s.conversation = append(s.conversation, item)
	return item
}

// LastUserItem returns the most recent user-authored item, or nil when
// the conversation holds none.
func (s *Session) LastUserItem() *types.ConversationItem {
	for i := len(s.conversation) - 1; i >= 0; i-- {
		if s.conversation[i].Role == types.RoleUser {
			return &s.conversation[i]
		}
	}
	return nil
}

// Conversation returns a copy of the history for archiving and status
// reporting.
func (s *Session) Conversation() []types.ConversationItem {
	out := make([]types.ConversationItem, len(s.conversation))
	copy(out, s.conversation)
	return out
}
