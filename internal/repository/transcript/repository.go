package transcript

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/xpanvictor/modality/internal/types"
	"github.com/xpanvictor/modality/pkg/Logger"
)

// ErrNotFound reports a lookup for a session that was never archived.
var ErrNotFound = errors.New("transcript not found")

// Repository archives realtime session transcripts and serves them
// back for inspection.
type Repository interface {
	SaveTranscript(ctx context.Context, sessionID string, startedAt, endedAt time.Time, items []types.ConversationItem) error
	GetBySessionID(ctx context.Context, sessionID string) (Summary, []Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Summary, error)
}

type GormTranscriptRepo struct {
	db     *gorm.DB
	logger *Logger.Logger
}

func NewGormTranscriptRepo(db *gorm.DB, logger *Logger.Logger) *GormTranscriptRepo {
	return &GormTranscriptRepo{db: db, logger: logger.Component("transcripts")}
}

// SaveTranscript implements Repository.
func (g *GormTranscriptRepo) SaveTranscript(ctx context.Context, sessionID string, startedAt, endedAt time.Time, items []types.ConversationItem) error {
	te := &TranscriptEntity{}
	te.FromSession(sessionID, startedAt, endedAt, items)
	if err := g.db.WithContext(ctx).Create(te).Error; err != nil {
		return err
	}
	g.logger.Infow("transcript archived",
		"session_id", sessionID, "items", len(items),
		"duration_s", endedAt.Sub(startedAt).Seconds())
	return nil
}

// GetBySessionID implements Repository.
func (g *GormTranscriptRepo) GetBySessionID(ctx context.Context, sessionID string) (Summary, []Entry, error) {
	var te TranscriptEntity
	err := g.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&te).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Summary{}, nil, ErrNotFound
		}
		return Summary{}, nil, err
	}

	entries := make([]Entry, 0, len(te.Items))
	for _, ie := range te.Items {
		entries = append(entries, ie.ToEntry())
	}
	return te.ToSummary(), entries, nil
}

// ListRecent implements Repository.
func (g *GormTranscriptRepo) ListRecent(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	var entities []TranscriptEntity
	err := g.db.WithContext(ctx).
		Order("ended_at DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(entities))
	for _, te := range entities {
		summaries = append(summaries, te.ToSummary())
	}
	return summaries, nil
}
