package ember

import "io"

// LimitedReader reads at most N bytes from the underlying reader and then
// reports io.EOF, without closing or otherwise disturbing the underlying
// connection (spec §4.2: bounding a request body to its declared
// Content-Length so a handler reading "until EOF" cannot run past the
// body into the next pipelined request). Distinct from io.LimitReader in
// that Drain discards whatever is left of the limit, which the connection
// loop calls between requests.
type LimitedReader struct {
	r      io.Reader
	remain int64
}

// NewLimitedReader returns a reader that yields at most n bytes from r.
func NewLimitedReader(r io.Reader, n int64) *LimitedReader {
	return &LimitedReader{r: r, remain: n}
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.remain <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.remain {
		p = p[:l.remain]
	}
	n, err := l.r.Read(p)
	l.remain -= int64(n)
	return n, err
}

// Remaining returns the number of bytes still permitted. It goes negative
// only if the caller bypasses Read and manipulates state directly; under
// normal use it saturates at zero.
func (l *LimitedReader) Remaining() int64 { return l.remain }

// Drain discards any unread bytes up to the limit, so the underlying
// connection is correctly positioned at the start of the next request
// even if the handler never read the full body.
func (l *LimitedReader) Drain() error {
	if l.remain <= 0 {
		return nil
	}
	_, err := io.Copy(io.Discard, l)
	return err
}
