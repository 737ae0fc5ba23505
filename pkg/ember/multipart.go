package ember

import (
	"bufio"
	"bytes"
	"io"

	"github.com/valyala/bytebufferpool"
)

// MultipartReader iterates the parts of a multipart/form-data body (spec
// §4.5). Not present in the teacher at all (shockwave's handlers never
// parsed uploads); grounded on the same family of boundary-scanning state
// machine spec.md describes, built around its own scan window over a
// pooled byte buffer (github.com/valyala/bytebufferpool, carried forward
// from the teacher's go.mod per SPEC_FULL.md §3) instead of the
// net/textproto-based mime/multipart stdlib reader, since the spec's
// boundary/epilogue contract is more specific than mime/multipart's.
type MultipartReader struct {
	r        *bufio.Reader
	boundary []byte // "--" + boundary, without the leading CRLF
	buf      *bytebufferpool.ByteBuffer

	head, tail, end int
	startedData     bool
	foundFirst      bool
	pastLast        bool
	eofUnderlying   bool
}

const multipartBufSize = 32 << 10

// NewMultipartReader constructs a reader over r for the given boundary
// token (without the leading "--"). Fails with ErrMultipartBoundarySize if
// boundary is empty or longer than 70 bytes (RFC 2046 §5.1.1), or
// ErrMultipartBoundaryTooLong if "--"+boundary would not fit the internal
// scan buffer.
func NewMultipartReader(r io.Reader, boundary string) (*MultipartReader, error) {
	if len(boundary) < 1 || len(boundary) > 70 {
		return nil, ErrMultipartBoundarySize
	}
	full := append([]byte("--"), boundary...)
	if len(full)+4 > multipartBufSize {
		return nil, ErrMultipartBoundaryTooLong
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, multipartBufSize)
	}
	buf := bytebufferpool.Get()
	return &MultipartReader{r: br, boundary: full, buf: buf}, nil
}

// Release returns the internal scan buffer to the shared pool. Call once
// the reader is no longer needed.
func (m *MultipartReader) Release() {
	if m.buf != nil {
		bytebufferpool.Put(m.buf)
		m.buf = nil
	}
}

// fill reads more bytes from the underlying stream into the scan buffer,
// compacting already-consumed bytes out of the front first.
func (m *MultipartReader) fill() error {
	if m.head > 0 {
		copy(m.buf.B[:m.end-m.head], m.buf.B[m.head:m.end])
		m.tail -= m.head
		m.end -= m.head
		m.head = 0
	}
	if m.end >= multipartBufSize {
		return ErrMultipartBoundaryTooLong
	}
	if cap(m.buf.B) < multipartBufSize {
		grown := make([]byte, multipartBufSize)
		copy(grown, m.buf.B)
		m.buf.B = grown
	} else if len(m.buf.B) < multipartBufSize {
		m.buf.B = m.buf.B[:multipartBufSize]
	}
	n, err := m.r.Read(m.buf.B[m.end:multipartBufSize])
	m.end += n
	if err != nil {
		if err == io.EOF {
			m.eofUnderlying = true
			return nil
		}
		return err
	}
	return nil
}

// scanToBoundary locates the next occurrence of CRLF+boundary at or after
// m.head, returning its offset and length of the matched delimiter
// (including the optional leading CRLF), or -1 if not yet found in the
// buffered window.
func (m *MultipartReader) scanToBoundary(allowMissingCRLF bool) (pos int, delimLen int) {
	window := m.buf.B[m.head:m.end]

	if allowMissingCRLF && bytes.HasPrefix(window, m.boundary) {
		return m.head, len(m.boundary)
	}
	needle := append([]byte("\r\n"), m.boundary...)
	idx := bytes.Index(window, needle)
	if idx < 0 {
		return -1, 0
	}
	return m.head + idx, len(needle)
}

// NextPart skips any unread bytes of the current part, advances past the
// next boundary, and reports whether a new part follows (false once the
// closing "--boundary--" has been crossed).
func (m *MultipartReader) NextPart() (bool, error) {
	if m.pastLast {
		return false, nil
	}

	if m.startedData {
		discard := make([]byte, 4096)
		for {
			_, err := m.read(discard)
			if err != nil {
				break
			}
		}
	}

	allowMissingCRLF := !m.foundFirst
	for {
		pos, dlen := m.scanToBoundary(allowMissingCRLF)
		if pos >= 0 {
			after := pos + dlen
			m.head = after
			m.foundFirst = true

			if after+2 <= m.end && m.buf.B[after] == '-' && m.buf.B[after+1] == '-' {
				m.head = after + 2
				m.pastLast = true
				m.consumeLineEnd()
				return false, nil
			}
			m.consumeLineEnd()
			m.startedData = true
			m.tail = m.head
			return true, nil
		}
		if m.eofUnderlying {
			return false, ErrMultipartMissingBoundary
		}
		if err := m.fill(); err != nil {
			return false, err
		}
	}
}

// consumeLineEnd skips the optional linear-whitespace-then-CRLF that may
// trail a boundary line (spec §4.5).
func (m *MultipartReader) consumeLineEnd() {
	for m.head < m.end && (m.buf.B[m.head] == ' ' || m.buf.B[m.head] == '\t') {
		m.head++
	}
	if m.head+1 < m.end && m.buf.B[m.head] == '\r' && m.buf.B[m.head+1] == '\n' {
		m.head += 2
	}
}

// read is Read's implementation, kept separate so NextPart's drain loop
// can call it without going through the public Read's part-boundary
// bookkeeping twice.
//
// Part content length is unbounded, while the scan window is a fixed
// multipartBufSize: once no full boundary match is found in the window,
// this streams out everything except the trailing len(needle)-1 bytes
// (the unresolved overlap that could still extend into a match), rather
// than blocking until the boundary appears somewhere in the buffer.
func (m *MultipartReader) read(p []byte) (int, error) {
	if !m.startedData {
		return 0, io.EOF
	}
	needleLen := len(m.boundary) + 2 // "\r\n" + boundary
	for {
		pos, _ := m.scanToBoundary(false)
		if pos >= 0 && pos >= m.head {
			avail := pos - m.head
			if avail == 0 {
				return 0, io.EOF
			}
			n := copy(p, m.buf.B[m.head:m.head+min(avail, len(p))])
			m.head += n
			return n, nil
		}

		window := m.end - m.head
		if m.eofUnderlying {
			// No boundary found and stream exhausted: return whatever is
			// safely known not to be a partial boundary match.
			if window <= 0 {
				return 0, ErrMultipartMissingBoundary
			}
			n := copy(p, m.buf.B[m.head:m.head+min(window, len(p))])
			m.head += n
			return n, nil
		}
		if window > needleLen-1 {
			safe := window - (needleLen - 1)
			n := copy(p, m.buf.B[m.head:m.head+min(safe, len(p))])
			m.head += n
			return n, nil
		}
		if err := m.fill(); err != nil {
			return 0, err
		}
	}
}

// Read returns the current part's data, yielding io.EOF when that part's
// data is exhausted (not when the underlying stream ends); call NextPart
// to advance.
func (m *MultipartReader) Read(p []byte) (int, error) {
	return m.read(p)
}
