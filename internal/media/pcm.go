package media

import (
	"bytes"
	"encoding/binary"
)

// Realtime clients stream raw pcm16 frames: 16 kHz, mono, 16-bit
// little-endian samples. ffmpeg needs a container, so committed audio
// buffers are framed as WAV before conversion.
const (
	pcmSampleRate = 16000
	pcmChannels   = 1
	pcmSampleBits = 16
)

// pcmToWAV wraps raw PCM samples in a minimal RIFF/WAVE header.
func pcmToWAV(pcm []byte) []byte {
	byteRate := pcmSampleRate * pcmChannels * pcmSampleBits / 8
	blockAlign := pcmChannels * pcmSampleBits / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(pcmChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(pcmSampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(pcmSampleBits))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
