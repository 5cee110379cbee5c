package layout

import "sync"

// Buffer is a growing byte buffer recycled through a pool.
type Buffer struct{ b []byte }

func (buf *Buffer) Bytes() []byte { return buf.b }
func (buf *Buffer) Len() int      { return len(buf.b) }
func (buf *Buffer) Reset()        { buf.b = buf.b[:0] }

func (buf *Buffer) writeString(s string) { buf.b = append(buf.b, s...) }
func (buf *Buffer) writeByte(c byte)     { buf.b = append(buf.b, c) }
func (buf *Buffer) writeBytes(p []byte)  { buf.b = append(buf.b, p...) }

// Write implements io.Writer so third-party encoders can target a Buffer.
func (buf *Buffer) Write(p []byte) (int, error) {
	buf.b = append(buf.b, p...)
	return len(p), nil
}

func (buf *Buffer) grow(n int) {
	if n <= cap(buf.b)-len(buf.b) {
		return
	}
	need := len(buf.b) + n
	newCap := cap(buf.b) * 2
	if newCap < need {
		newCap = need
	}
	nb := make([]byte, len(buf.b), newCap)
	copy(nb, buf.b)
	buf.b = nb
}

const (
	defaultBufCap = 1024
	maxPooledCap  = 64 * 1024
)

var bufPool = sync.Pool{New: func() any { return &Buffer{b: make([]byte, 0, defaultBufCap)} }}

// GetBuffer returns an empty pooled buffer.
func GetBuffer() *Buffer {
	buf := bufPool.Get().(*Buffer)
	buf.b = buf.b[:0]
	return buf
}

// PutBuffer returns buf to the pool. Oversized buffers are dropped.
func PutBuffer(buf *Buffer) {
	if cap(buf.b) <= maxPooledCap {
		bufPool.Put(buf)
	}
}
