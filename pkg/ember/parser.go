package ember

import (
	"bufio"
	"strconv"
	"strings"
)

// Parser reads one Request from a connection's buffered input (spec
// §4.6). Grounded on http11/parser.go's state-machine shape but rebuilt
// around LineReader/Headers instead of the teacher's flat byte-buffer
// scan, since header folding and ordered duplicate-preserving storage
// need more than index-of-CRLF splitting.
type Parser struct {
	lr *LineReader
}

// NewParser returns a Parser reading from br.
func NewParser(br *bufio.Reader) *Parser {
	return &Parser{lr: NewLineReader(br)}
}

// Parse reads and validates one request line and header block into r;
// body framing is configured separately by SetupBody.
// ErrMissingRequestLine signals end of stream or a read timeout before a
// request line arrived, a clean idle point between requests (spec §4.11's
// connection loop treats it as a graceful disconnect rather than an error).
func (p *Parser) Parse(r *Request) error {
	if err := p.parseRequestLine(r); err != nil {
		return err
	}
	if err := p.parseHeaders(r); err != nil {
		return err
	}
	return nil
}

// parseRequestLine tolerates leading empty lines (spec §4.6 step 1),
// then splits the line into exactly three SP-delimited tokens.
func (p *Parser) parseRequestLine(r *Request) error {
	var line string
	for {
		tok, err := p.lr.ReadTokenString('\n', false, MaxRequestLineSize, "iso-8859-1")
		if err != nil {
			if err == ErrUnexpectedEOF || isTimeout(err) {
				return ErrMissingRequestLine
			}
			return err
		}
		if tok != "" {
			line = tok
			break
		}
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return ErrInvalidRequestLine
	}
	method, target, version := parts[0], parts[1], parts[2]
	if method == "" {
		return ErrInvalidMethod
	}
	if strings.Contains(version, " ") {
		return ErrInvalidRequestLine
	}

	switch version {
	case HTTP11, HTTP10, HTTP09:
	default:
		return ErrInvalidProtocol
	}

	path, query, host := splitRequestTarget(target)
	if path == "" {
		return ErrInvalidPath
	}
	path = collapseSlashes(path)
	if path[0] != '/' && path != "*" {
		return ErrInvalidPath
	}

	r.Method = method
	r.Version = version
	r.rawPath = path
	r.rawQuery = query
	r.uriHost = host
	return nil
}

// splitRequestTarget splits a request-target into path, query, and
// (for absolute-form or authority-form targets) host.
func splitRequestTarget(target string) (path, query, host string) {
	if target == "*" {
		return "*", "", ""
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		rest := target
		if idx := strings.Index(rest, "://"); idx >= 0 {
			rest = rest[idx+3:]
		}
		slash := strings.IndexByte(rest, '/')
		if slash < 0 {
			return "/", "", rest
		}
		host = rest[:slash]
		target = rest[slash:]
	}
	if qi := strings.IndexByte(target, '?'); qi >= 0 {
		return target[:qi], target[qi+1:], host
	}
	return target, "", host
}

// parseHeaders reads the header block (spec §4.6 step 2): lines starting
// with SP/HTAB continue the previous header (folding), joined with a
// single space; duplicate names are concatenated with ", " to distinguish
// true repeats from folds. Enforces the smuggling protections of
// RFC 7230 §3.3.3 and the single-Host rule of §5.4.
func (p *Parser) parseHeaders(r *Request) error {
	var (
		hasCL, hasTE, hasHost bool
		clValue               int64
		lineCount             int
		lastName              string
	)

	for {
		line, err := p.lr.ReadTokenString('\n', false, MaxHeaderLineSize, "iso-8859-1")
		if err != nil {
			return err
		}
		if line == "" {
			break
		}

		lineCount++
		if lineCount > MaxHeaderLines {
			return ErrTooManyHeaders
		}

		if line[0] == ' ' || line[0] == '\t' {
			if lastName == "" {
				return ErrInvalidHeader
			}
			prev, _ := r.Headers.Get(lastName)
			r.Headers.ReplaceFirst(lastName, prev+" "+strings.TrimSpace(line))
			continue
		}

		idx := strings.IndexByte(line, ':')
		if idx <= 0 {
			return ErrInvalidHeader
		}
		name := line[:idx]
		if name[len(name)-1] == ' ' || name[len(name)-1] == '\t' {
			return ErrInvalidHeader
		}
		value := strings.TrimSpace(line[idx+1:])
		lastName = name

		if existing, ok := r.Headers.Get(name); ok {
			r.Headers.ReplaceFirst(name, existing+", "+value)
		} else {
			if err := r.Headers.Add(name, value); err != nil {
				return err
			}
		}

		switch {
		case strings.EqualFold(name, HeaderContentLength):
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return ErrInvalidContentLength
			}
			if hasCL && clValue != n {
				return ErrDuplicateContentLength
			}
			hasCL = true
			clValue = n
		case strings.EqualFold(name, HeaderTransferEncoding):
			hasTE = true
			r.TransferEncoding = splitTokens(strings.ToLower(value))
		case strings.EqualFold(name, HeaderHost):
			if hasHost {
				return ErrMultipleHost
			}
			hasHost = true
		}
	}

	if hasCL && hasTE {
		return ErrContentLengthWithTransferEncoding
	}
	if hasCL {
		r.ContentLength = clValue
	} else if !hasTE {
		r.ContentLength = 0
	}
	return nil
}

// SetupBody wraps conn's remaining bytes in the body stream spec §4.6
// step 3 selects: a chunked reader if Transfer-Encoding's token list ends
// in "chunked", a read-until-close stream for any other non-identity
// coding, or a Content-Length-limited stream (length 0 if absent).
func SetupBody(r *Request, conn *bufio.Reader) {
	if r.IsChunked() {
		r.Body = &chunkedBody{cr: NewChunkedReader(conn).KeepTrailers(), headers: r.Headers}
		return
	}
	if len(r.TransferEncoding) > 0 {
		r.Body = &untilCloseBody{r: conn}
		return
	}
	r.Body = NewLimitedReader(conn, r.ContentLength)
}

// chunkedBody adapts *ChunkedReader to BodyReader; Drain reads to the
// trailing chunk so the connection is clean for the next request, then
// folds any captured trailer fields into headers (spec §4.3) using the
// same duplicate-concatenation rule parseHeaders uses.
type chunkedBody struct {
	cr      *ChunkedReader
	headers *Headers
}

func (c *chunkedBody) Read(p []byte) (int, error) { return c.cr.Read(p) }

func (c *chunkedBody) Drain() error {
	buf := make([]byte, 4096)
	for {
		_, err := c.cr.Read(buf)
		if err != nil {
			if err == ErrChunkedTruncated {
				return err
			}
			break
		}
	}
	mergeTrailer(c.headers, c.cr.Trailer())
	return nil
}

// mergeTrailer folds trailer's entries into dst, concatenating repeated
// names with ", " exactly as parseHeaders does for regular header folds.
func mergeTrailer(dst, trailer *Headers) {
	if trailer == nil {
		return
	}
	for _, h := range trailer.All() {
		if existing, ok := dst.Get(h.Name); ok {
			dst.ReplaceFirst(h.Name, existing+", "+h.Value)
		} else {
			dst.AddRaw(h.Name, h.Value)
		}
	}
}

// untilCloseBody is used for a declared-but-unrecognized Transfer-Encoding
// whose body framing is "until the connection closes" (spec §4.6 step 3).
// Its Drain is a no-op: the connection cannot be reused afterward, and the
// connection loop closes it once the transaction ends.
type untilCloseBody struct {
	r *bufio.Reader
}

func (u *untilCloseBody) Read(p []byte) (int, error) { return u.r.Read(p) }
func (u *untilCloseBody) Drain() error               { return nil }
