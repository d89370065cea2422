package protocol

// buffer is a bounded payload buffer. Appends past capacity are dropped
// and counted rather than grown: a malformed or over-long frame costs at
// most BufferCapacity bytes and is then judged on its retained prefix.
type buffer struct {
	data    [BufferCapacity]byte
	n       int
	dropped int
}

func (b *buffer) append(c byte) {
	if b.n >= len(b.data) {
		b.dropped++
		return
	}
	b.data[b.n] = c
	b.n++
}

func (b *buffer) bytes() []byte {
	return b.data[:b.n]
}

func (b *buffer) len() int {
	return b.n
}

func (b *buffer) reset() {
	b.n = 0
	b.dropped = 0
}

// clone returns a copy of p that does not alias the decoder buffer.
func clone(p []byte) []byte {
	out := make([]byte, len(p))
	copy(out, p)
	return out
}
