package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"strconv"
)

// blockSize is the number of bytes one HMAC block contributes to a stream.
const blockSize = sha256.Size

// byteStream yields HMAC-SHA256(server, "client:nonce:block") one byte at a
// time, moving to the next block when the current one is used up. Every
// shuffle, encounter roll and skill offer of a session reads from it, so a
// session replays exactly given its seeds.
type byteStream struct {
	mac    []byte
	prefix []byte
	block  uint64
	pos    int
	buf    [blockSize]byte
}

// newByteStream positions a stream at byte offset cursor.
func newByteStream(server, client string, nonce, cursor uint64) *byteStream {
	s := &byteStream{
		mac:    []byte(server),
		prefix: []byte(client + ":" + strconv.FormatUint(nonce, 10) + ":"),
		block:  cursor / blockSize,
		pos:    int(cursor % blockSize),
	}
	s.fill()
	return s
}

func (s *byteStream) fill() {
	h := hmac.New(sha256.New, s.mac)
	h.Write(s.prefix)
	h.Write(strconv.AppendUint(nil, s.block, 10))
	h.Sum(s.buf[:0])
}

func (s *byteStream) next() byte {
	if s.pos == blockSize {
		s.block++
		s.pos = 0
		s.fill()
	}
	b := s.buf[s.pos]
	s.pos++
	return b
}

// float consumes four bytes and maps them into [0, 1).
func (s *byteStream) float() float64 {
	return bytesToFloat([4]byte{s.next(), s.next(), s.next(), s.next()})
}

// bytesToFloat reads b as a big-endian fraction of 2^32, so the result is
// always below 1.
func bytesToFloat(b [4]byte) float64 {
	return float64(binary.BigEndian.Uint32(b[:])) / (1 << 32)
}

// Floats returns count floats read from the stream for the given seeds,
// starting at byte offset cursor. It is what a verifier recomputes to audit
// a session.
func Floats(server, client string, nonce, cursor uint64, count int) []float64 {
	s := newByteStream(server, client, nonce, cursor)
	out := make([]float64, count)
	for i := range out {
		out[i] = s.float()
	}
	return out
}
