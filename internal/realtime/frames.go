package realtime

import (
	"encoding/binary"
	"errors"

	"github.com/smallnest/ringbuffer"
)

// streamFrame is one queued video frame with the id the client
// assigned to it.
type streamFrame struct {
	ID   int64
	Data []byte
}

const frameHeaderLen = 12 // 4-byte payload length + 8-byte frame id

// frameRing queues incoming stream frames in a fixed byte budget,
// dropping the oldest frames when a burst outruns analysis. Records
// are stored length-prefixed so variable-size frames pack into one
// ring. Not safe for concurrent use; each stream connection owns one.
type frameRing struct {
	size    int
	rb      *ringbuffer.RingBuffer
	dropped int
}

func newFrameRing(size int) *frameRing {
	return &frameRing{
		size: size,
		rb:   ringbuffer.New(size).SetBlocking(false),
	}
}

// Enqueue adds a frame, evicting oldest entries until it fits.
func (r *frameRing) Enqueue(f streamFrame) error {
	required := len(f.Data) + frameHeaderLen
	if required > r.rb.Capacity() {
		return errors.New("frame larger than ring capacity")
	}

	for r.rb.Free() < required {
		if !r.dropOldest() {
			r.rb.Reset()
			break
		}
		r.dropped++
	}

	header := make([]byte, frameHeaderLen)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(f.Data)))
	binary.LittleEndian.PutUint64(header[4:12], uint64(f.ID))
	if _, err := r.rb.Write(header); err != nil {
		return err
	}
	_, err := r.rb.Write(f.Data)
	return err
}

// Dequeue pops the oldest queued frame.
func (r *frameRing) Dequeue() (streamFrame, bool) {
	if r.rb.IsEmpty() {
		return streamFrame{}, false
	}

	header := make([]byte, frameHeaderLen)
	n, err := r.rb.Read(header)
	if err != nil || n != frameHeaderLen {
		return streamFrame{}, false
	}
	size := int(binary.LittleEndian.Uint32(header[0:4]))
	id := int64(binary.LittleEndian.Uint64(header[4:12]))

	data := make([]byte, size)
	if size > 0 {
		n, err = r.rb.Read(data)
		if err != nil || n != size {
			return streamFrame{}, false
		}
	}
	return streamFrame{ID: id, Data: data}, true
}

func (r *frameRing) dropOldest() bool {
	if r.rb.IsEmpty() {
		return false
	}
	header := make([]byte, frameHeaderLen)
	n, err := r.rb.Read(header)
	if err != nil || n != frameHeaderLen {
		return false
	}
	size := int(binary.LittleEndian.Uint32(header[0:4]))
	if size > 0 {
		skip := make([]byte, size)
		n, err := r.rb.Read(skip)
		if err != nil || n != size {
			return false
		}
	}
	return true
}

// Dropped reports how many frames were evicted unprocessed.
func (r *frameRing) Dropped() int { return r.dropped }

// BufferedBytes reports the bytes currently queued, headers included.
func (r *frameRing) BufferedBytes() int { return r.rb.Length() }
