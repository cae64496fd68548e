package transcript

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/xpanvictor/modality/internal/types"
)

// TranscriptEntity is one archived realtime session. Media payloads
// are never persisted; items keep their text and a marker of which
// media types they carried.
type TranscriptEntity struct {
	ID        uuid.UUID `gorm:"primaryKey;type:char(36);not null"`
	SessionID string    `gorm:"column:session_id;type:varchar(64);uniqueIndex;not null"`

	StartedAt time.Time `gorm:"column:started_at"`
	EndedAt   time.Time `gorm:"column:ended_at"`
	ItemCount int       `gorm:"column:item_count"`

	CreatedAt time.Time      `gorm:"autoCreateTime(3)"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime(3)"`
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Items []TranscriptItemEntity `gorm:"foreignKey:TranscriptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

type TranscriptItemEntity struct {
	ID           uuid.UUID `gorm:"primaryKey;type:char(36);not null"`
	TranscriptID uuid.UUID `gorm:"column:transcript_id;type:char(36);not null;index"`

	Position   int    `gorm:"column:position"`
	ItemID     string `gorm:"column:item_id;type:varchar(64)"`
	Role       string `gorm:"type:varchar(16)"`
	Text       string `gorm:"type:text"`
	MediaTypes string `gorm:"column:media_types;type:varchar(64)"`

	CreatedAt time.Time `gorm:"autoCreateTime(3)"`
}

func (te *TranscriptEntity) FromSession(sessionID string, startedAt, endedAt time.Time, items []types.ConversationItem) {
	te.ID = uuid.New()
	te.SessionID = sessionID
	te.StartedAt = startedAt
	te.EndedAt = endedAt
	te.ItemCount = len(items)
	te.Items = make([]TranscriptItemEntity, 0, len(items))
	for i, item := range items {
		var ie TranscriptItemEntity
		ie.FromItem(te.ID, i, item)
		te.Items = append(te.Items, ie)
	}
}

func (ie *TranscriptItemEntity) FromItem(transcriptID uuid.UUID, position int, item types.ConversationItem) {
	ie.ID = uuid.New()
	ie.TranscriptID = transcriptID
	ie.Position = position
	ie.ItemID = item.ID
	ie.Role = string(item.Role)

	var texts, mediaTypes []string
	for _, part := range item.Content {
		if part.Type == types.ContentText {
			if part.Text != "" {
				texts = append(texts, part.Text)
			}
			continue
		}
		if _, ok := part.MediaPayload(); ok {
			mediaTypes = append(mediaTypes, string(part.Type))
		}
	}
	ie.Text = strings.Join(texts, "\n")
	ie.MediaTypes = strings.Join(mediaTypes, ",")
}

// Summary is the domain view handlers expose.
type Summary struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	ItemCount int       `json:"item_count"`
}

// Entry is one archived conversation item.
type Entry struct {
	Position   int    `json:"position"`
	ItemID     string `json:"item_id"`
	Role       string `json:"role"`
	Text       string `json:"text"`
	MediaTypes string `json:"media_types,omitempty"`
}

func (te *TranscriptEntity) ToSummary() Summary {
	return Summary{
		SessionID: te.SessionID,
		StartedAt: te.StartedAt,
		EndedAt:   te.EndedAt,
		ItemCount: te.ItemCount,
	}
}

func (ie *TranscriptItemEntity) ToEntry() Entry {
	return Entry{
		Position:   ie.Position,
		ItemID:     ie.ItemID,
		Role:       ie.Role,
		Text:       ie.Text,
		MediaTypes: ie.MediaTypes,
	}
}
