package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// Buffer track states. A track moves idle -> buffering on the first
// append and back to idle when a commit settles.
const (
	trackIdle       = "idle"
	trackBuffering  = "buffering"
	trackCommitting = "committing"
)

// Track transition events.
const (
	trackEvAppend = "append"
	trackEvCommit = "commit"
	trackEvSettle = "settle"
)

// ErrBufferOverflow reports an append that would push a track past its
// configured byte limit.
var ErrBufferOverflow = errors.New("buffer limit exceeded")

// bufferTrack accumulates one modality's media bytes between commits.
// It is not safe for concurrent use; the session dispatch loop is the
// only caller.
type bufferTrack struct {
	machine *fsm.FSM
	data    []byte
	max     int
}

func newBufferTrack(maxBytes int) *bufferTrack {
	return &bufferTrack{
		max: maxBytes,
		machine: fsm.NewFSM(
			trackIdle,
			fsm.Events{
				{Name: trackEvAppend, Src: []string{trackIdle, trackBuffering}, Dst: trackBuffering},
				{Name: trackEvCommit, Src: []string{trackIdle, trackBuffering}, Dst: trackCommitting},
				{Name: trackEvSettle, Src: []string{trackCommitting}, Dst: trackIdle},
			},
			fsm.Callbacks{},
		),
	}
}

func (t *bufferTrack) transition(ctx context.Context, event string) error {
	err := t.machine.Event(ctx, event)
	if err == nil {
		return nil
	}
	// Re-entering the current state (append while buffering) is fine.
	var noop fsm.NoTransitionError
	if errors.As(err, &noop) {
		return nil
	}
	return fmt.Errorf("buffer track %s: %w", event, err)
}

// Append adds a chunk to the track, rejecting growth past the limit.
func (t *bufferTrack) Append(ctx context.Context, chunk []byte) error {
	if t.max > 0 && len(t.data)+len(chunk) > t.max {
		return ErrBufferOverflow
	}
	if err := t.transition(ctx, trackEvAppend); err != nil {
		return err
	}
	t.data = append(t.data, chunk...)
	return nil
}

// BeginCommit snapshots the buffered bytes and marks the track as
// committing. The caller must Settle afterwards, success or not.
func (t *bufferTrack) BeginCommit(ctx context.Context) ([]byte, error) {
	if err := t.transition(ctx, trackEvCommit); err != nil {
		return nil, err
	}
	return t.data, nil
}

// Settle clears the buffer and returns the track to idle. Clearing
// happens here exactly once per commit, regardless of how processing
// of the snapshot went.
func (t *bufferTrack) Settle(ctx context.Context) {
	t.data = nil
	// transition cannot fail from committing
	_ = t.transition(ctx, trackEvSettle)
}

func (t *bufferTrack) Len() int { return len(t.data) }

func (t *bufferTrack) State() string { return t.machine.Current() }
