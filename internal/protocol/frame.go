// internal/protocol/frame.go
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Wire framing. Every message is a 4-byte little-endian length header, the
// payload, then zero padding so the whole frame is a multiple of BlockSize.
// A frame always carries at least one pad byte.
const (
	HeaderSize = 4
	BlockSize  = 256

	// MaxPayloadSize bounds what a peer may announce in a header.
	MaxPayloadSize = 1 << 20
)

var (
	ErrFrameTooLarge = errors.New("protocol: frame payload too large")
	ErrFrameComplete = errors.New("protocol: message already complete")
)

// FrameLen is the number of bytes a payload of the given size occupies on
// the wire: the smallest multiple of BlockSize strictly greater than
// size+HeaderSize.
func FrameLen(size int) int {
	return ((size+HeaderSize)/BlockSize + 1) * BlockSize
}

// padLen is how many zero bytes follow a payload of the given size.
func padLen(size int) int {
	return FrameLen(size) - HeaderSize - size
}

// EncodeFrame wraps payload in a header and padding.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	buf := make([]byte, FrameLen(len(payload)))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// WriteFrame encodes payload and writes the full frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// Message is a payload being received. It is fed arbitrary slices of the
// stream and reports when the announced number of bytes has arrived.
type Message struct {
	header  [HeaderSize]byte
	hdrRead int

	// Size is -1 until the header has been read.
	Size    int
	Payload []byte
}

// NewMessage returns an empty message waiting for its header.
func NewMessage() *Message {
	return &Message{Size: -1}
}

// Complete reports whether the whole payload has been read.
func (m *Message) Complete() bool {
	return m.Size >= 0 && len(m.Payload) == m.Size
}

// Remaining is the number of payload bytes still expected, or -1 while the
// header is incomplete.
func (m *Message) Remaining() int {
	if m.Size < 0 {
		return -1
	}
	return m.Size - len(m.Payload)
}

// Decode consumes as much of buf as the message needs and returns how many
// bytes were used. Bytes past the end of the payload are left untouched.
func (m *Message) Decode(buf []byte) (int, error) {
	if m.Complete() {
		return 0, ErrFrameComplete
	}
	used := 0
	if m.Size < 0 {
		n := copy(m.header[m.hdrRead:], buf)
		m.hdrRead += n
		used += n
		buf = buf[n:]
		if m.hdrRead < HeaderSize {
			return used, nil
		}
		size := binary.LittleEndian.Uint32(m.header[:])
		if size > MaxPayloadSize {
			return used, fmt.Errorf("%w: header announces %d bytes", ErrFrameTooLarge, size)
		}
		m.Size = int(size)
		m.Payload = make([]byte, 0, m.Size)
	}
	want := m.Remaining()
	if want > len(buf) {
		want = len(buf)
	}
	m.Payload = append(m.Payload, buf[:want]...)
	return used + want, nil
}

// Decoder splits a byte stream into payloads. Chunks may break anywhere,
// including inside a header or inside the padding.
type Decoder struct {
	cur  *Message
	skip int
}

// Feed consumes a chunk and returns every payload it completed, in order.
func (d *Decoder) Feed(chunk []byte) ([][]byte, error) {
	var out [][]byte
	for len(chunk) > 0 {
		if d.skip > 0 {
			n := min(d.skip, len(chunk))
			d.skip -= n
			chunk = chunk[n:]
			continue
		}
		if d.cur == nil {
			d.cur = NewMessage()
		}
		n, err := d.cur.Decode(chunk)
		if err != nil {
			return out, err
		}
		chunk = chunk[n:]
		if d.cur.Complete() {
			out = append(out, d.cur.Payload)
			d.skip = padLen(d.cur.Size)
			d.cur = nil
		}
	}
	return out, nil
}

// Pending reports whether a partially received frame is buffered.
func (d *Decoder) Pending() bool {
	return d.cur != nil || d.skip > 0
}

// FrameReader pulls whole payloads off an io.Reader.
type FrameReader struct {
	r     io.Reader
	dec   Decoder
	buf   []byte
	ready [][]byte
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r, buf: make([]byte, 4096)}
}

// Next blocks until a full payload is available. It returns io.EOF when the
// peer closes cleanly between frames and io.ErrUnexpectedEOF when it closes
// mid-frame.
func (fr *FrameReader) Next() ([]byte, error) {
	for len(fr.ready) == 0 {
		n, err := fr.r.Read(fr.buf)
		if n > 0 {
			payloads, derr := fr.dec.Feed(fr.buf[:n])
			fr.ready = append(fr.ready, payloads...)
			if derr != nil {
				return nil, derr
			}
		}
		if err != nil {
			if len(fr.ready) > 0 {
				break
			}
			if errors.Is(err, io.EOF) && fr.dec.Pending() {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	p := fr.ready[0]
	fr.ready = fr.ready[1:]
	return p, nil
}
