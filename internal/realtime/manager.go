package realtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/xpanvictor/modality/internal/config"
	"github.com/xpanvictor/modality/internal/llm"
	"github.com/xpanvictor/modality/internal/media"
	"github.com/xpanvictor/modality/internal/types"
	"github.com/xpanvictor/modality/pkg/Logger"
)

// Session-level default instructions applied when the session config
// carries none.
const (
	audioCommitPrompt = "Please transcribe and respond to this audio."
	videoCommitPrompt = "Analyze this video content."

	videoTooSmallNotice = "Video chunk received but too small for analysis. Recording longer clips for better results."
)

// Client-facing failure messages. Intentionally generic; the detailed
// cause only reaches the server log.
const (
	msgAudioFailed      = "Unable to process audio. Please try again."
	msgVideoFailed      = "Unable to process video. Please try again."
	msgRequestFailed    = "Unable to process your request. Please try again."
	msgUnknownEvent     = "Invalid request format. Please try again."
	msgInvalidJSON      = "Invalid JSON format"
	msgNoUserMessage    = "No user message to respond to."
	msgBufferOverflowed = "Buffer limit exceeded. Commit or reconnect before appending more data."
)

// Conn is the subset of *websocket.Conn the manager drives. Tests
// substitute an in-memory implementation.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
}

// Archiver persists finished session transcripts. The manager treats
// archiving as best effort; failures are logged, never surfaced.
type Archiver interface {
	SaveTranscript(ctx context.Context, sessionID string, startedAt, endedAt time.Time, items []types.ConversationItem) error
}

// Manager owns the realtime protocol: one HandleConnection call per
// socket, sequential dispatch of its events, and session lifecycle
// against the shared store.
type Manager struct {
	cfg      config.RealtimeConfig
	store    *Store
	encoder  media.Encoder
	backend  llm.Client
	presence *Presence
	archive  Archiver
	logger   *Logger.Logger
}

func NewManager(
	cfg config.RealtimeConfig,
	store *Store,
	encoder media.Encoder,
	backend llm.Client,
	presence *Presence,
	archive Archiver,
	logger *Logger.Logger,
) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    store,
		encoder:  encoder,
		backend:  backend,
		presence: presence,
		archive:  archive,
		logger:   logger.Component("realtime"),
	}
}

// Store exposes the session store for status reporting.
func (m *Manager) Store() *Store { return m.store }

// HandleConnection runs the read loop for one socket until the peer
// disconnects or the context ends. The session is removed from the
// store exactly once on the way out, and any in-flight backend call is
// cancelled through the derived context.
func (m *Manager) HandleConnection(ctx context.Context, conn Conn) {
	sess, err := m.store.Create("session_" + randomID())
	if err != nil {
		m.logger.Errorw("session create failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		m.store.Remove(sess.ID)
		m.presence.Remove(sess.ID)
		m.archiveSession(sess)
		m.logger.Infow("realtime session closed", "session_id", sess.ID)
	}()

	m.presence.Register(sess.ID)
	m.logger.Infow("realtime session started", "session_id", sess.ID)

	created := SessionLifecycleEvent{
		EventID: fmt.Sprintf("event_%s_created", sess.ID),
		Type:    EventSessionCreated,
		Session: sess.Config,
	}
	if err := conn.WriteJSON(created); err != nil {
		m.logger.Warnw("session greeting failed", "session_id", sess.ID, "error", err)
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.logger.Debugw("realtime read ended", "session_id", sess.ID, "error", err)
			return
		}
		m.presence.Touch(sess.ID)
		for _, out := range m.Dispatch(ctx, sess, raw) {
			if err := conn.WriteJSON(out); err != nil {
				m.logger.Warnw("realtime write failed", "session_id", sess.ID, "error", err)
				return
			}
		}
	}
}

// Dispatch decodes one inbound message and returns the ordered replies
// for it. Every recognized event produces exactly one acknowledgment;
// commits and response triggers may prepend a response.done or error
// event before theirs.
func (m *Manager) Dispatch(ctx context.Context, sess *Session, raw []byte) []interface{} {
	ev, err := ParseClientEvent(raw)
	if err != nil {
		m.logger.Warnw("malformed event", "session_id", sess.ID, "error", err)
		return []interface{}{newErrorEvent(ev.EventID, ErrTypeInvalidRequest, CodeInvalidJSON, msgInvalidJSON)}
	}

	switch ev.Type {
	case EventSessionUpdate:
		sess.Config = ev.Session
		m.logger.Infow("session updated", "session_id", sess.ID, "modalities", sess.Config.Modalities)
		return []interface{}{SessionLifecycleEvent{
			EventID: ev.EventID,
			Type:    EventSessionUpdated,
			Session: sess.Config,
		}}

	case EventAudioAppend:
		return m.appendBuffer(ctx, sess, "audio", ev.EventID, ev.Audio)

	case EventVideoAppend:
		return m.appendBuffer(ctx, sess, "video", ev.EventID, ev.Video)

	case EventAudioCommit:
		return m.commitBuffer(ctx, sess, "audio", ev.EventID)

	case EventVideoCommit:
		return m.commitBuffer(ctx, sess, "video", ev.EventID)

	case EventItemCreate:
		stored := sess.AppendItem(ctx, *ev.Item)
		m.logger.Infow("conversation item created",
			"session_id", sess.ID, "item_id", stored.ID, "role", stored.Role)
		return []interface{}{ItemCreatedEvent{EventID: ev.EventID, Type: EventItemCreated, Item: stored}}

	case EventResponseCreate:
		return m.respond(ctx, sess, ev.EventID)

	default:
		m.logger.Warnw("unknown event type", "session_id", sess.ID, "type", ev.Type)
		return []interface{}{newErrorEvent(ev.EventID, ErrTypeInvalidRequest, CodeUnknownEventType, msgUnknownEvent)}
	}
}

func (m *Manager) appendBuffer(ctx context.Context, sess *Session, modality, eventID string, chunk []byte) []interface{} {
	track := sess.track(modality)
	if err := track.Append(ctx, chunk); err != nil {
		m.logger.Warnw("buffer append rejected",
			"session_id", sess.ID, "modality", modality, "chunk_bytes", len(chunk),
			"buffered_bytes", track.Len(), "error", err)
		return []interface{}{newErrorEvent(eventID, ErrTypeInvalidRequest, CodeBufferOverflow, msgBufferOverflowed)}
	}
	m.logger.Debugw("buffer appended",
		"session_id", sess.ID, "modality", modality,
		"chunk_bytes", len(chunk), "buffered_bytes", track.Len())
	ackType := EventAudioAppended
	if modality == "video" {
		ackType = EventVideoAppended
	}
	return []interface{}{BufferAckEvent{EventID: eventID, Type: ackType}}
}

// commitBuffer processes the accumulated buffer of one modality. The
// buffer is cleared exactly once whatever happens to the snapshot, and
// the cleared acknowledgment is always the last event of the batch.
func (m *Manager) commitBuffer(ctx context.Context, sess *Session, modality, eventID string) []interface{} {
	track := sess.track(modality)
	data, err := track.BeginCommit(ctx)
	if err != nil {
		m.logger.Errorw("commit transition failed",
			"session_id", sess.ID, "modality", modality, "error", err)
		return []interface{}{newErrorEvent(eventID, ErrTypeServer, CodeProcessingFailed, msgRequestFailed)}
	}
	defer track.Settle(ctx)

	clearedType := EventAudioCleared
	if modality == "video" {
		clearedType = EventVideoCleared
	}
	cleared := BufferAckEvent{EventID: eventID, Type: clearedType}

	// Nothing buffered: acknowledge the clear without touching the
	// encoder or the backend.
	if len(data) == 0 {
		return []interface{}{cleared}
	}

	var out []interface{}
	if modality == "video" {
		out = m.processVideoCommit(ctx, sess, eventID, data)
	} else {
		out = m.processAudioCommit(ctx, sess, eventID, data)
	}
	return append(out, cleared)
}

func (m *Manager) processAudioCommit(ctx context.Context, sess *Session, eventID string, data []byte) []interface{} {
	m.logger.Infow("processing audio buffer",
		"session_id", sess.ID, "bytes", len(data), "format", sess.Config.InputAudioFormat)

	audioB64, err := m.encoder.EncodePCM(ctx, data)
	if err != nil {
		m.logger.Errorw("audio encode failed", "session_id", sess.ID, "error", err)
		return []interface{}{newErrorEvent(eventID, ErrTypeServer, CodeProcessingFailed, msgAudioFailed)}
	}

	instructions := sess.Config.Instructions
	if instructions == "" {
		instructions = audioCommitPrompt
	}

	text, err := m.backend.Generate(ctx, llm.Request{
		Prompt:          instructions,
		AudioB64:        []string{audioB64},
		Temperature:     sess.Config.Temperature,
		MaxOutputTokens: sess.Config.MaxResponseOutputTokens,
	})
	if err != nil {
		m.logger.Errorw("audio inference failed", "session_id", sess.ID, "error", err)
		return []interface{}{newErrorEvent(eventID, ErrTypeServer, CodeProcessingFailed, msgAudioFailed)}
	}
	return []interface{}{newResponseDone(eventID, types.NewAssistantText("item_"+eventID, text))}
}

func (m *Manager) processVideoCommit(ctx context.Context, sess *Session, eventID string, data []byte) []interface{} {
	m.logger.Infow("processing video buffer", "session_id", sess.ID, "bytes", len(data))

	// The hosted backend rejects tiny clips, so short commits get an
	// advisory reply instead of an inference round trip.
	if int64(len(data)) < m.cfg.MinVideoBytes {
		m.logger.Warnw("video buffer below analysis threshold",
			"session_id", sess.ID, "bytes", len(data), "min_bytes", m.cfg.MinVideoBytes)
		return []interface{}{newResponseDone(eventID, types.NewAssistantText("item_"+eventID, videoTooSmallNotice))}
	}

	videoB64, info, err := m.encoder.EncodeVideo(ctx, data, "realtime_chunk_"+sess.ID+".mp4")
	if err != nil {
		m.logger.Errorw("video encode failed", "session_id", sess.ID, "error", err)
		return []interface{}{newErrorEvent(eventID, ErrTypeServer, CodeProcessingFailed, msgVideoFailed)}
	}
	m.logger.Debugw("video encoded",
		"session_id", sess.ID, "size_mb", info.FileSizeMB, "duration_s", info.DurationSeconds)

	instructions := sess.Config.Instructions
	if instructions == "" {
		instructions = videoCommitPrompt
	}

	text, err := m.backend.Generate(ctx, llm.Request{
		Prompt:          instructions,
		VideoB64:        []string{videoB64},
		Temperature:     sess.Config.Temperature,
		MaxOutputTokens: sess.Config.MaxResponseOutputTokens,
	})
	if err != nil {
		m.logger.Errorw("video inference failed", "session_id", sess.ID, "error", err)
		return []interface{}{newErrorEvent(eventID, ErrTypeServer, CodeProcessingFailed, msgVideoFailed)}
	}
	return []interface{}{newResponseDone(eventID, types.NewAssistantText("item_"+eventID, text))}
}

// respond generates a model reply for the newest user item in the
// conversation, combining session instructions with the item's text.
func (m *Manager) respond(ctx context.Context, sess *Session, eventID string) []interface{} {
	last := sess.LastUserItem()
	if last == nil {
		m.logger.Warnw("response.create without user message", "session_id", sess.ID)
		return []interface{}{newErrorEvent(eventID, ErrTypeInvalidRequest, CodeNoUserMessage, msgNoUserMessage)}
	}

	req, err := m.buildRequest(ctx, sess, last)
	if err != nil {
		m.logger.Errorw("response input processing failed", "session_id", sess.ID, "error", err)
		return []interface{}{newErrorEvent(eventID, ErrTypeServer, CodeProcessingFailed, msgRequestFailed)}
	}

	text, err := m.backend.Generate(ctx, req)
	if err != nil {
		m.logger.Errorw("response inference failed", "session_id", sess.ID, "error", err)
		return []interface{}{newErrorEvent(eventID, ErrTypeServer, CodeProcessingFailed, msgRequestFailed)}
	}

	item := types.NewAssistantText("item_"+eventID, text)
	sess.AppendItem(ctx, item)
	return []interface{}{newResponseDone(eventID, item)}
}

// buildRequest turns a stored user item into a backend request:
// media parts are decoded and re-encoded to the wire formats the
// backends accept, and session instructions wrap the text part.
func (m *Manager) buildRequest(ctx context.Context, sess *Session, item *types.ConversationItem) (llm.Request, error) {
	req := llm.Request{
		Temperature:     sess.Config.Temperature,
		MaxOutputTokens: sess.Config.MaxResponseOutputTokens,
	}

	var text string
	for _, part := range item.Content {
		switch part.Type {
		case types.ContentText:
			text = part.Text
		case types.ContentAudio:
			raw, err := base64.StdEncoding.DecodeString(part.Audio)
			if err != nil {
				return req, fmt.Errorf("decode audio part: %w", err)
			}
			b64, err := m.encoder.EncodeAudio(ctx, raw, "realtime_item.wav")
			if err != nil {
				return req, fmt.Errorf("encode audio part: %w", err)
			}
			req.AudioB64 = append(req.AudioB64, b64)
		case types.ContentImage:
			raw, err := base64.StdEncoding.DecodeString(part.Image)
			if err != nil {
				return req, fmt.Errorf("decode image part: %w", err)
			}
			b64, err := m.encoder.EncodeImage(ctx, raw, "realtime_item.png")
			if err != nil {
				return req, fmt.Errorf("encode image part: %w", err)
			}
			req.ImageB64 = append(req.ImageB64, b64)
		case types.ContentVideo:
			raw, err := base64.StdEncoding.DecodeString(part.Video)
			if err != nil {
				return req, fmt.Errorf("decode video part: %w", err)
			}
			b64, _, err := m.encoder.EncodeVideo(ctx, raw, "realtime_item.mp4")
			if err != nil {
				return req, fmt.Errorf("encode video part: %w", err)
			}
			req.VideoB64 = append(req.VideoB64, b64)
		}
	}

	switch {
	case sess.Config.Instructions != "" && text != "":
		req.Prompt = sess.Config.Instructions + "\n\nUser input: " + text
	case sess.Config.Instructions != "":
		req.Prompt = sess.Config.Instructions
	default:
		req.Prompt = text
	}
	return req, nil
}

func (m *Manager) archiveSession(sess *Session) {
	if m.archive == nil {
		return
	}
	items := sess.Conversation()
	if len(items) == 0 {
		return
	}
	// Detached context: the connection context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.archive.SaveTranscript(ctx, sess.ID, sess.CreatedAt, time.Now(), items); err != nil {
		m.logger.Warnw("transcript archive failed", "session_id", sess.ID, "error", err)
	}
}
