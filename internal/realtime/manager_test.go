package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/xpanvictor/modality/internal/config"
	"github.com/xpanvictor/modality/internal/llm"
	"github.com/xpanvictor/modality/internal/media"
	"github.com/xpanvictor/modality/internal/types"
	"github.com/xpanvictor/modality/pkg/Logger"
)

type fakeEncoder struct {
	pcmCalls   [][]byte
	audioCalls [][]byte
	imageCalls [][]byte
	videoCalls [][]byte
	err        error
}

func (f *fakeEncoder) EncodePCM(_ context.Context, pcm []byte) (string, error) {
	f.pcmCalls = append(f.pcmCalls, pcm)
	if f.err != nil {
		return "", f.err
	}
	return base64.StdEncoding.EncodeToString(pcm), nil
}

func (f *fakeEncoder) EncodeAudio(_ context.Context, data []byte, _ string) (string, error) {
	f.audioCalls = append(f.audioCalls, data)
	if f.err != nil {
		return "", f.err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (f *fakeEncoder) EncodeImage(_ context.Context, data []byte, _ string) (string, error) {
	f.imageCalls = append(f.imageCalls, data)
	if f.err != nil {
		return "", f.err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (f *fakeEncoder) EncodeVideo(_ context.Context, data []byte, _ string) (string, media.VideoInfo, error) {
	f.videoCalls = append(f.videoCalls, data)
	if f.err != nil {
		return "", media.VideoInfo{}, f.err
	}
	return base64.StdEncoding.EncodeToString(data), media.VideoInfo{FileSizeMB: 1}, nil
}

func (f *fakeEncoder) Probe(_ context.Context, _ []byte, _ string) (media.VideoInfo, error) {
	return media.VideoInfo{}, nil
}

type fakeBackend struct {
	reply string
	err   error
	calls []llm.Request
}

func (f *fakeBackend) Generate(_ context.Context, req llm.Request) (string, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeBackend) Info() llm.BackendInfo {
	return llm.BackendInfo{Backend: "fake", Model: "fake-model"}
}

type scriptConn struct {
	queue [][]byte
	out   []interface{}
}

func (c *scriptConn) ReadMessage() (int, []byte, error) {
	if len(c.queue) == 0 {
		return 0, nil, errors.New("connection closed")
	}
	msg := c.queue[0]
	c.queue = c.queue[1:]
	return 1, msg, nil
}

func (c *scriptConn) WriteJSON(v interface{}) error {
	c.out = append(c.out, v)
	return nil
}

type fakeArchiver struct {
	sessionIDs []string
	items      [][]types.ConversationItem
}

func (f *fakeArchiver) SaveTranscript(_ context.Context, sessionID string, _, _ time.Time, items []types.ConversationItem) error {
	f.sessionIDs = append(f.sessionIDs, sessionID)
	f.items = append(f.items, items)
	return nil
}

func testRealtimeConfig() config.RealtimeConfig {
	return config.RealtimeConfig{
		MaxBufferBytes: 1 << 20,
		MinVideoBytes:  10,
		FrameRingBytes: 1 << 16,
	}
}

func newTestManager(cfg config.RealtimeConfig, enc *fakeEncoder, backend *fakeBackend, archive Archiver) *Manager {
	logger := Logger.New(true)
	store := NewStore(int(cfg.MaxBufferBytes))
	return NewManager(cfg, store, enc, backend, nil, archive, logger)
}

func newTestSession(t *testing.T, m *Manager) *Session {
	t.Helper()
	sess, err := m.Store().Create("session_test")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func event(t *testing.T, fields map[string]interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return raw
}

func appendAudioEvent(t *testing.T, id string, chunk []byte) []byte {
	return event(t, map[string]interface{}{
		"event_id": id,
		"type":     "input_audio_buffer.append",
		"audio":    base64.StdEncoding.EncodeToString(chunk),
	})
}

func TestAudioCommitAccumulatesChunks(t *testing.T) {
	enc := &fakeEncoder{}
	backend := &fakeBackend{reply: "heard you"}
	m := newTestManager(testRealtimeConfig(), enc, backend, nil)
	sess := newTestSession(t, m)
	ctx := context.Background()

	for i, chunk := range [][]byte{[]byte("AAA"), []byte("BBB"), []byte("CCC")} {
		out := m.Dispatch(ctx, sess, appendAudioEvent(t, fmt.Sprintf("ev%d", i), chunk))
		if len(out) != 1 {
			t.Fatalf("append %d: got %d replies, want 1", i, len(out))
		}
		ack, ok := out[0].(BufferAckEvent)
		if !ok || ack.Type != EventAudioAppended {
			t.Fatalf("append %d: got %#v, want appended ack", i, out[0])
		}
	}

	out := m.Dispatch(ctx, sess, event(t, map[string]interface{}{
		"event_id": "commit1", "type": "input_audio_buffer.commit",
	}))
	if len(out) != 2 {
		t.Fatalf("commit: got %d replies, want response.done + cleared", len(out))
	}

	done, ok := out[0].(ResponseDoneEvent)
	if !ok {
		t.Fatalf("first commit reply is %#v, want ResponseDoneEvent", out[0])
	}
	if done.Response.ID != "resp_commit1" || done.Response.Object != "realtime.response" || done.Response.Status != "completed" {
		t.Errorf("bad response envelope: %+v", done.Response)
	}
	if len(done.Response.Output) != 1 || done.Response.Output[0].Content[0].Text != "heard you" {
		t.Errorf("bad response output: %+v", done.Response.Output)
	}

	cleared, ok := out[1].(BufferAckEvent)
	if !ok || cleared.Type != EventAudioCleared || cleared.EventID != "commit1" {
		t.Fatalf("last commit reply is %#v, want cleared ack", out[1])
	}

	if len(enc.pcmCalls) != 1 || string(enc.pcmCalls[0]) != "AAABBBCCC" {
		t.Errorf("encoder saw %q, want one call with AAABBBCCC", enc.pcmCalls)
	}
	if len(backend.calls) != 1 {
		t.Fatalf("backend called %d times, want 1", len(backend.calls))
	}
	if backend.calls[0].Prompt != audioCommitPrompt {
		t.Errorf("prompt = %q, want default audio instructions", backend.calls[0].Prompt)
	}

	// The buffer was cleared: a second commit must not reach the backend.
	out = m.Dispatch(ctx, sess, event(t, map[string]interface{}{
		"event_id": "commit2", "type": "input_audio_buffer.commit",
	}))
	if len(out) != 1 {
		t.Fatalf("empty commit: got %d replies, want 1", len(out))
	}
	if ack, ok := out[0].(BufferAckEvent); !ok || ack.Type != EventAudioCleared {
		t.Fatalf("empty commit reply is %#v, want cleared ack", out[0])
	}
	if len(backend.calls) != 1 || len(enc.pcmCalls) != 1 {
		t.Errorf("empty commit touched encoder or backend")
	}
}

func TestEmptyCommitSkipsBackend(t *testing.T) {
	enc := &fakeEncoder{}
	backend := &fakeBackend{reply: "unused"}
	m := newTestManager(testRealtimeConfig(), enc, backend, nil)
	sess := newTestSession(t, m)

	out := m.Dispatch(context.Background(), sess, event(t, map[string]interface{}{
		"event_id": "c1", "type": "input_video_buffer.commit",
	}))
	if len(out) != 1 {
		t.Fatalf("got %d replies, want cleared only", len(out))
	}
	if ack, ok := out[0].(BufferAckEvent); !ok || ack.Type != EventVideoCleared {
		t.Fatalf("reply %#v, want video cleared ack", out[0])
	}
	if len(backend.calls) != 0 || len(enc.videoCalls) != 0 {
		t.Error("empty commit must not call encoder or backend")
	}
}

func TestCommitClearsBufferOnBackendFailure(t *testing.T) {
	enc := &fakeEncoder{}
	backend := &fakeBackend{err: errors.New("backend unreachable")}
	m := newTestManager(testRealtimeConfig(), enc, backend, nil)
	sess := newTestSession(t, m)
	ctx := context.Background()

	m.Dispatch(ctx, sess, appendAudioEvent(t, "a1", []byte("payload")))
	out := m.Dispatch(ctx, sess, event(t, map[string]interface{}{
		"event_id": "c1", "type": "input_audio_buffer.commit",
	}))
	if len(out) != 2 {
		t.Fatalf("got %d replies, want error + cleared", len(out))
	}
	errEv, ok := out[0].(ErrorEvent)
	if !ok {
		t.Fatalf("first reply %#v, want ErrorEvent", out[0])
	}
	if errEv.Error.Code != CodeProcessingFailed || errEv.Error.Type != ErrTypeServer {
		t.Errorf("error body = %+v", errEv.Error)
	}
	if strings.Contains(errEv.Error.Message, "unreachable") {
		t.Errorf("client error leaks backend detail: %q", errEv.Error.Message)
	}
	if _, ok := out[1].(BufferAckEvent); !ok {
		t.Fatalf("cleared ack missing after failure: %#v", out[1])
	}
	if sess.track("audio").Len() != 0 {
		t.Error("buffer not cleared after failed commit")
	}

	// Session stays usable after the failure.
	backend.err = nil
	backend.reply = "recovered"
	m.Dispatch(ctx, sess, appendAudioEvent(t, "a2", []byte("again")))
	out = m.Dispatch(ctx, sess, event(t, map[string]interface{}{
		"event_id": "c2", "type": "input_audio_buffer.commit",
	}))
	if _, ok := out[0].(ResponseDoneEvent); !ok {
		t.Fatalf("session unusable after failure, got %#v", out[0])
	}
	if string(enc.pcmCalls[len(enc.pcmCalls)-1]) != "again" {
		t.Error("stale buffer content leaked into next commit")
	}
}

func TestVideoCommitBelowThreshold(t *testing.T) {
	cfg := testRealtimeConfig()
	cfg.MinVideoBytes = 1000
	enc := &fakeEncoder{}
	backend := &fakeBackend{reply: "unused"}
	m := newTestManager(cfg, enc, backend, nil)
	sess := newTestSession(t, m)
	ctx := context.Background()

	m.Dispatch(ctx, sess, event(t, map[string]interface{}{
		"event_id": "v1",
		"type":     "input_video_buffer.append",
		"video":    base64.StdEncoding.EncodeToString([]byte("tiny")),
	}))
	out := m.Dispatch(ctx, sess, event(t, map[string]interface{}{
		"event_id": "c1", "type": "input_video_buffer.commit",
	}))
	if len(out) != 2 {
		t.Fatalf("got %d replies, want notice + cleared", len(out))
	}
	done, ok := out[0].(ResponseDoneEvent)
	if !ok {
		t.Fatalf("first reply %#v, want ResponseDoneEvent", out[0])
	}
	if done.Response.Output[0].Content[0].Text != videoTooSmallNotice {
		t.Errorf("notice text = %q", done.Response.Output[0].Content[0].Text)
	}
	if len(backend.calls) != 0 || len(enc.videoCalls) != 0 {
		t.Error("tiny video must not reach encoder or backend")
	}
}

func TestSessionUpdateReplacesWholeConfig(t *testing.T) {
	m := newTestManager(testRealtimeConfig(), &fakeEncoder{}, &fakeBackend{}, nil)
	sess := newTestSession(t, m)
	ctx := context.Background()

	m.Dispatch(ctx, sess, event(t, map[string]interface{}{
		"event_id": "u1",
		"type":     "session.update",
		"session": map[string]interface{}{
			"modalities":  []string{"text", "audio"},
			"temperature": 0.9,
			"voice":       "echo",
		},
	}))
	if sess.Config.Temperature != 0.9 || sess.Config.Voice != "echo" {
		t.Fatalf("first update not applied: %+v", sess.Config)
	}

	// A second update mentioning only instructions resets everything
	// else to defaults rather than keeping the previous values.
	out := m.Dispatch(ctx, sess, event(t, map[string]interface{}{
		"event_id": "u2",
		"type":     "session.update",
		"session":  map[string]interface{}{"instructions": "be brief"},
	}))
	if sess.Config.Instructions != "be brief" {
		t.Errorf("instructions not applied: %+v", sess.Config)
	}
	if sess.Config.Temperature != 0.6 || sess.Config.Voice != "alloy" {
		t.Errorf("omitted fields kept old values: %+v", sess.Config)
	}
	if len(sess.Config.Modalities) != 1 || sess.Config.Modalities[0] != "text" {
		t.Errorf("modalities not reset: %v", sess.Config.Modalities)
	}

	upd, ok := out[0].(SessionLifecycleEvent)
	if !ok || upd.Type != EventSessionUpdated || upd.EventID != "u2" {
		t.Fatalf("reply %#v, want session.updated", out[0])
	}
	if upd.Session.Instructions != "be brief" {
		t.Errorf("updated event does not carry the effective config: %+v", upd.Session)
	}
}

func TestResponseCreateWithoutUserMessage(t *testing.T) {
	backend := &fakeBackend{reply: "unused"}
	m := newTestManager(testRealtimeConfig(), &fakeEncoder{}, backend, nil)
	sess := newTestSession(t, m)

	out := m.Dispatch(context.Background(), sess, event(t, map[string]interface{}{
		"event_id": "r1", "type": "response.create",
	}))
	if len(out) != 1 {
		t.Fatalf("got %d replies, want 1", len(out))
	}
	errEv, ok := out[0].(ErrorEvent)
	if !ok {
		t.Fatalf("reply %#v, want ErrorEvent", out[0])
	}
	if errEv.Error.Type != ErrTypeInvalidRequest || errEv.Error.Code != CodeNoUserMessage {
		t.Errorf("error body = %+v", errEv.Error)
	}
	if len(backend.calls) != 0 {
		t.Error("backend called with no user message")
	}
}

func TestResponseCreateUsesNewestUserItem(t *testing.T) {
	enc := &fakeEncoder{}
	backend := &fakeBackend{reply: "the summary"}
	m := newTestManager(testRealtimeConfig(), enc, backend, nil)
	sess := newTestSession(t, m)
	ctx := context.Background()

	sess.Config.Instructions = "Answer concisely."

	for i, text := range []string{"first question", "second question"} {
		out := m.Dispatch(ctx, sess, event(t, map[string]interface{}{
			"event_id": fmt.Sprintf("i%d", i),
			"type":     "conversation.item.create",
			"item": map[string]interface{}{
				"type": "message",
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": text},
				},
			},
		}))
		created, ok := out[0].(ItemCreatedEvent)
		if !ok || created.Type != EventItemCreated {
			t.Fatalf("item %d reply %#v, want item created", i, out[0])
		}
		if created.Item.ID == "" {
			t.Error("stored item missing generated id")
		}
	}

	out := m.Dispatch(ctx, sess, event(t, map[string]interface{}{
		"event_id": "r1", "type": "response.create",
	}))
	done, ok := out[0].(ResponseDoneEvent)
	if !ok {
		t.Fatalf("reply %#v, want ResponseDoneEvent", out[0])
	}
	if done.Response.ID != "resp_r1" {
		t.Errorf("response id = %q", done.Response.ID)
	}

	if len(backend.calls) != 1 {
		t.Fatalf("backend called %d times, want 1", len(backend.calls))
	}
	wantPrompt := "Answer concisely.\n\nUser input: second question"
	if backend.calls[0].Prompt != wantPrompt {
		t.Errorf("prompt = %q, want %q", backend.calls[0].Prompt, wantPrompt)
	}

	// Assistant reply joins the history so later turns see it.
	conv := sess.Conversation()
	if len(conv) != 3 {
		t.Fatalf("conversation has %d items, want 3", len(conv))
	}
	last := conv[2]
	if last.Role != types.RoleAssistant || last.Content[0].Text != "the summary" {
		t.Errorf("assistant item = %+v", last)
	}
}

func TestResponseCreateEncodesMediaParts(t *testing.T) {
	enc := &fakeEncoder{}
	backend := &fakeBackend{reply: "described"}
	m := newTestManager(testRealtimeConfig(), enc, backend, nil)
	sess := newTestSession(t, m)
	ctx := context.Background()

	imageBytes := []byte("png-bytes")
	m.Dispatch(ctx, sess, event(t, map[string]interface{}{
		"event_id": "i1",
		"type":     "conversation.item.create",
		"item": map[string]interface{}{
			"type": "message",
			"role": "user",
			"content": []map[string]interface{}{
				{"type": "text", "text": "what is this"},
				{"type": "image", "image": base64.StdEncoding.EncodeToString(imageBytes)},
			},
		},
	}))
	m.Dispatch(ctx, sess, event(t, map[string]interface{}{
		"event_id": "r1", "type": "response.create",
	}))

	if len(enc.imageCalls) != 1 || string(enc.imageCalls[0]) != "png-bytes" {
		t.Fatalf("image part not re-encoded: %q", enc.imageCalls)
	}
	if len(backend.calls) != 1 || len(backend.calls[0].ImageB64) != 1 {
		t.Fatalf("backend request missing image: %+v", backend.calls)
	}
	if backend.calls[0].Prompt != "what is this" {
		t.Errorf("prompt = %q", backend.calls[0].Prompt)
	}
}

func TestUnknownEventType(t *testing.T) {
	m := newTestManager(testRealtimeConfig(), &fakeEncoder{}, &fakeBackend{}, nil)
	sess := newTestSession(t, m)

	out := m.Dispatch(context.Background(), sess, event(t, map[string]interface{}{
		"event_id": "x1", "type": "response.cancel",
	}))
	if len(out) != 1 {
		t.Fatalf("got %d replies, want 1", len(out))
	}
	errEv, ok := out[0].(ErrorEvent)
	if !ok {
		t.Fatalf("reply %#v, want ErrorEvent", out[0])
	}
	if errEv.Error.Code != CodeUnknownEventType || errEv.EventID != "x1" {
		t.Errorf("error = %+v", errEv)
	}
}

func TestInvalidJSON(t *testing.T) {
	m := newTestManager(testRealtimeConfig(), &fakeEncoder{}, &fakeBackend{}, nil)
	sess := newTestSession(t, m)

	out := m.Dispatch(context.Background(), sess, []byte("{not json"))
	if len(out) != 1 {
		t.Fatalf("got %d replies, want 1", len(out))
	}
	errEv, ok := out[0].(ErrorEvent)
	if !ok {
		t.Fatalf("reply %#v, want ErrorEvent", out[0])
	}
	if errEv.Error.Code != CodeInvalidJSON || errEv.EventID != "error" {
		t.Errorf("error = %+v", errEv)
	}
}

func TestBufferOverflowRejected(t *testing.T) {
	cfg := testRealtimeConfig()
	cfg.MaxBufferBytes = 4
	m := newTestManager(cfg, &fakeEncoder{}, &fakeBackend{}, nil)
	sess := newTestSession(t, m)
	ctx := context.Background()

	m.Dispatch(ctx, sess, appendAudioEvent(t, "a1", []byte("1234")))
	out := m.Dispatch(ctx, sess, appendAudioEvent(t, "a2", []byte("5")))
	errEv, ok := out[0].(ErrorEvent)
	if !ok || errEv.Error.Code != CodeBufferOverflow {
		t.Fatalf("reply %#v, want buffer overflow error", out[0])
	}
	// The buffered bytes before the rejected chunk survive.
	if sess.track("audio").Len() != 4 {
		t.Errorf("buffer len = %d, want 4", sess.track("audio").Len())
	}
}

func TestHandleConnectionLifecycle(t *testing.T) {
	archive := &fakeArchiver{}
	backend := &fakeBackend{reply: "hello there"}
	m := newTestManager(testRealtimeConfig(), &fakeEncoder{}, backend, archive)

	conn := &scriptConn{queue: [][]byte{
		event(t, map[string]interface{}{
			"event_id": "i1",
			"type":     "conversation.item.create",
			"item": map[string]interface{}{
				"type": "message",
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": "hi"},
				},
			},
		}),
		event(t, map[string]interface{}{"event_id": "r1", "type": "response.create"}),
	}}

	m.HandleConnection(context.Background(), conn)

	if len(conn.out) != 3 {
		t.Fatalf("got %d outbound events, want created + item ack + response", len(conn.out))
	}
	created, ok := conn.out[0].(SessionLifecycleEvent)
	if !ok || created.Type != EventSessionCreated {
		t.Fatalf("greeting = %#v, want session.created", conn.out[0])
	}
	if created.Session.Temperature != 0.6 || created.Session.Voice != "alloy" {
		t.Errorf("greeting config not defaults: %+v", created.Session)
	}
	if _, ok := conn.out[1].(ItemCreatedEvent); !ok {
		t.Errorf("second event %#v, want item created", conn.out[1])
	}
	if _, ok := conn.out[2].(ResponseDoneEvent); !ok {
		t.Errorf("third event %#v, want response done", conn.out[2])
	}

	if m.Store().Len() != 0 {
		t.Error("session not removed on disconnect")
	}
	if len(archive.sessionIDs) != 1 {
		t.Fatalf("archive called %d times, want 1", len(archive.sessionIDs))
	}
	if len(archive.items[0]) != 2 {
		t.Errorf("archived %d items, want user + assistant", len(archive.items[0]))
	}
}

func TestHandleConnectionEmptyConversationNotArchived(t *testing.T) {
	archive := &fakeArchiver{}
	m := newTestManager(testRealtimeConfig(), &fakeEncoder{}, &fakeBackend{}, archive)

	conn := &scriptConn{}
	m.HandleConnection(context.Background(), conn)

	if len(archive.sessionIDs) != 0 {
		t.Error("empty conversation should not be archived")
	}
}
