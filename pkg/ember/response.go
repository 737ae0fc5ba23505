package ember

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// Response writes one HTTP/1.1 response (spec §3 "Response", §4.7).
// Grounded on http11/response.go's pre-compiled-status-line /
// headers-sent bookkeeping, generalized to the fuller sendHeaders /
// sendBody / send / sendError / redirect / close contract spec §4.7
// describes, with compression delegated to
// github.com/klauspost/compress/gzip and github.com/klauspost/compress/flate
// (see SPEC_FULL.md §3).
type Response struct {
	w  *bufio.Writer
	bw io.Writer // the (possibly gzip/deflate/chunked-wrapped) body sink

	Headers *Headers

	status int

	headersSent bool
	discardBody bool

	clientAcceptsGzip    bool
	clientAcceptsDeflate bool
	clientAcceptsChunked bool

	chunkWriter *ChunkedWriter
	compressor  io.WriteCloser

	bytesWritten int64
}

// NewResponse wraps w (typically the connection's buffered writer) for
// one request/response transaction.
func NewResponse(w *bufio.Writer) *Response {
	return &Response{w: w, bw: w, Headers: NewHeaders(), status: 200}
}

// Reset reinitializes r for reuse from a pool against a new writer.
func (r *Response) Reset(w *bufio.Writer) {
	r.w = w
	r.bw = w
	r.Headers.entries = r.Headers.entries[:0]
	r.status = 200
	r.headersSent = false
	r.discardBody = false
	r.clientAcceptsGzip = false
	r.clientAcceptsDeflate = false
	r.clientAcceptsChunked = false
	r.chunkWriter = nil
	r.compressor = nil
	r.bytesWritten = 0
}

// Configure derives the transfer-state flags from the request that this
// response answers (spec §3: discard-body, client-accepts-gzip,
// client-accepts-deflate, client-accepts-chunked).
func (r *Response) Configure(req *Request) {
	r.discardBody = SuppressesResponseBody(req.Method)
	r.clientAcceptsChunked = req.Version == HTTP11

	if ae, ok := req.Headers.Get(HeaderAcceptEncoding); ok {
		for _, tok := range splitTokens(ae) {
			name, _, _ := strings.Cut(tok, ";")
			switch strings.TrimSpace(strings.ToLower(name)) {
			case "gzip":
				r.clientAcceptsGzip = true
			case "deflate":
				r.clientAcceptsDeflate = true
			}
		}
	}
}

// HeadersSent reports whether sendHeaders has already run.
func (r *Response) HeadersSent() bool { return r.headersSent }

// SendContinue emits the interim "100 Continue" status line and flushes
// it immediately (spec §4.11 preprocess), without marking headers as
// sent — the real status line still follows once the handler runs.
func (r *Response) SendContinue() error {
	if _, err := io.WriteString(r.w, HTTP11+" 100 Continue\r\n\r\n"); err != nil {
		return err
	}
	return r.w.Flush()
}

// compressiblePatterns are the glob patterns spec §4.7 lists for its
// compressibility predicate.
var compressiblePatterns = []string{"text/*", "*/javascript", "*icon", "*+xml", "*/json"}

func isCompressible(contentType string) bool {
	base, _, _ := strings.Cut(contentType, ";")
	base = strings.TrimSpace(base)
	for _, pat := range compressiblePatterns {
		switch {
		case strings.HasPrefix(pat, "*"):
			if strings.HasSuffix(base, pat[1:]) {
				return true
			}
		case strings.HasSuffix(pat, "*"):
			if strings.HasPrefix(base, pat[:len(pat)-1]) {
				return true
			}
		case base == pat:
			return true
		}
	}
	return false
}

// SendHeaders emits the status line and header block (spec §4.7
// sendHeaders). length < 0 means unknown; lastModified zero means
// omitted; etag/contentType empty means omitted; rng non-nil switches the
// status to 206 and adds Content-Range. Idempotent: a second call is a
// no-op.
func (r *Response) SendHeaders(status int, length int64, lastModified time.Time, etag, contentType string, rng *ByteRange) error {
	if r.headersSent {
		return nil
	}
	r.headersSent = true

	if rng != nil {
		status = 206
	}
	r.status = status

	if !r.Headers.Contains(HeaderDate) {
		if d, err := FormatHTTPDate(time.Now()); err == nil {
			r.Headers.Set(HeaderDate, d)
		}
	}
	if !r.Headers.Contains(HeaderServer) {
		r.Headers.Set(HeaderServer, ServerName)
	}
	if !lastModified.IsZero() {
		if d, err := FormatHTTPDate(lastModified); err == nil {
			r.Headers.Set(HeaderLastModified, d)
		}
	}
	if etag != "" {
		r.Headers.Set(HeaderETag, etag)
	}
	if contentType != "" {
		r.Headers.Set(HeaderContentType, contentType)
	}

	useChunked := length < 0 && r.clientAcceptsChunked
	if useChunked {
		r.Headers.Set(HeaderTransferEncoding, "chunked")
	} else if length >= 0 && rng == nil {
		r.Headers.Set(HeaderContentLength, strconv.FormatInt(length, 10))
	}

	if rng != nil {
		r.Headers.Set(HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, rng.Length))
		r.Headers.Set(HeaderContentLength, strconv.FormatInt(rng.End-rng.Start+1, 10))
	}

	useGzip := false
	useDeflate := false
	if contentType != "" && isCompressible(contentType) && rng == nil && r.clientAcceptsChunked {
		switch {
		case r.clientAcceptsGzip:
			useGzip = true
		case r.clientAcceptsDeflate:
			useDeflate = true
		}
	}
	if useGzip || useDeflate {
		r.Headers.RemoveAll(HeaderContentLength)
		if useGzip {
			r.Headers.Set(HeaderContentEncoding, "gzip")
		} else {
			r.Headers.Set(HeaderContentEncoding, "deflate")
		}
		if !useChunked {
			r.Headers.Set(HeaderTransferEncoding, "chunked")
			useChunked = true
		}
	}

	if _, err := io.WriteString(r.w, r.Version()+" "+strconv.Itoa(r.status)+" "+StatusText(r.status)+"\r\n"); err != nil {
		return err
	}
	for _, h := range r.Headers.All() {
		if _, err := io.WriteString(r.w, h.Name+": "+h.Value+"\r\n"); err != nil {
			return err
		}
	}
	if _, err := r.w.Write(crlf); err != nil {
		return err
	}

	sink := io.Writer(r.w)
	if useChunked {
		r.chunkWriter = NewChunkedWriter(sink)
		sink = r.chunkWriter
	}
	if useGzip {
		gz, _ := gzip.NewWriterLevel(sink, gzip.DefaultCompression)
		r.compressor = gz
		sink = gz
	} else if useDeflate {
		fl, _ := flate.NewWriter(sink, flate.DefaultCompression)
		r.compressor = fl
		sink = fl
	}
	r.bw = sink
	return nil
}

// version is fixed at HTTP/1.1 for this engine's own output regardless of
// the request's version, matching the teacher's single-version design.
func (r *Response) Version() string { return HTTP11 }

// SendBody streams in (truncated to rng if given) to the body sink,
// honoring the discard-body flag (spec §4.7 sendBody).
func (r *Response) SendBody(in io.Reader, totalLen int64, rng *ByteRange) (int64, error) {
	if !r.headersSent {
		if err := r.SendHeaders(r.status, totalLen, time.Time{}, "", "", rng); err != nil {
			return 0, err
		}
	}
	if r.discardBody {
		return 0, nil
	}
	if rng != nil {
		if seeker, ok := in.(io.Seeker); ok {
			if _, err := seeker.Seek(rng.Start, io.SeekStart); err != nil {
				return 0, err
			}
		}
		in = NewLimitedReader(in, rng.End-rng.Start+1)
	}
	n, err := io.Copy(r.bw, in)
	r.bytesWritten += n
	return n, err
}

// Send is the shorthand send(status, text) of spec §4.7: a UTF-8
// text/html body with the given status.
func (r *Response) Send(status int, text string) error {
	body := []byte(text)
	if err := r.SendHeaders(status, int64(len(body)), time.Time{}, "", "text/html; charset=utf-8", nil); err != nil {
		return err
	}
	if r.discardBody {
		return nil
	}
	n, err := r.bw.Write(body)
	r.bytesWritten += int64(n)
	return err
}

// SendError generates the default HTML error body (spec §4.7
// sendError): escaped text, status reason, and a link to the host root.
// Sets Connection: close for status >= 400.
func (r *Response) SendError(status int, text string) error {
	if text == "" {
		text = StatusText(status)
	}
	if status >= 400 {
		r.Headers.Set(HeaderConnection, "close")
	}
	body := fmt.Sprintf(
		"<html><head><title>%d %s</title></head><body><h1>%d %s</h1><p>%s</p><hr><a href=\"/\">/</a></body></html>",
		status, StatusText(status), status, StatusText(status), html.EscapeString(text),
	)
	return r.Send(status, body)
}

// Redirect sends a 301 (permanent) or 302 redirect with a zero-length
// body and a Location header (spec §4.7 redirect).
func (r *Response) Redirect(url string, permanent bool) error {
	status := 302
	if permanent {
		status = 301
	}
	r.Headers.Set(HeaderLocation, url)
	return r.SendHeaders(status, 0, time.Time{}, "", "", nil)
}

// Close finalizes the response: flushing a chunked trailer if the body
// sink was chunked, or simply flushing otherwise. It never closes the
// underlying connection (spec §4.7 close).
func (r *Response) Close() error {
	if !r.headersSent {
		if err := r.SendHeaders(r.status, 0, time.Time{}, "", "", nil); err != nil {
			return err
		}
	}
	if r.compressor != nil {
		if err := r.compressor.Close(); err != nil {
			return err
		}
	}
	if r.chunkWriter != nil {
		if err := r.chunkWriter.Close(); err != nil {
			return err
		}
	}
	return r.w.Flush()
}

// Status returns the status code passed to (or defaulted by) SendHeaders.
func (r *Response) Status() int { return r.status }

// BytesWritten returns the number of body bytes streamed so far.
func (r *Response) BytesWritten() int64 { return r.bytesWritten }
