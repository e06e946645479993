package protocol

import "errors"

// ErrTruncated is returned when a read would pass the end of the frame.
var ErrTruncated = errors.New("protocol: truncated frame")

// ErrOverlong is returned when a string longer than 255 bytes is encoded.
var ErrOverlong = errors.New("protocol: string exceeds 255 bytes")

// Reader decodes u8 and str8 primitives from a received frame.
type Reader struct {
	buf []byte
	off int
}

// NewReader wraps a frame for decoding. The Reader does not copy buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// U8 reads one unsigned byte.
func (r *Reader) U8() (byte, error) {
	if r.off >= len(r.buf) {
		return 0, ErrTruncated
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

// Str8 reads a u8 length followed by that many bytes of payload.
func (r *Reader) Str8() (string, error) {
	n, err := r.U8()
	if err != nil {
		return "", err
	}
	if r.off+int(n) > len(r.buf) {
		return "", ErrTruncated
	}
	s := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Builder encodes u8 and str8 primitives into an outgoing frame.
type Builder struct {
	buf []byte
}

// NewBuilder returns a Builder with capacity for a typical small frame.
func NewBuilder() *Builder {
	return &Builder{buf: make([]byte, 0, 64)}
}

// PutU8 appends one unsigned byte.
func (b *Builder) PutU8(v byte) {
	b.buf = append(b.buf, v)
}

// PutStr8 appends a u8 length prefix and the string bytes. Strings longer
// than 255 bytes fail with ErrOverlong; callers that want clipping truncate
// before encoding.
func (b *Builder) PutStr8(s string) error {
	if len(s) > 255 {
		return ErrOverlong
	}
	b.buf = append(b.buf, byte(len(s)))
	b.buf = append(b.buf, s...)
	return nil
}

// Bytes returns the encoded frame.
func (b *Builder) Bytes() []byte {
	return b.buf
}
