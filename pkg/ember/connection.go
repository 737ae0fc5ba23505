package ember

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"time"
)

// Connection drives one accepted socket through the HTTP/1.1 persistent-
// connection loop (spec §4.11). Grounded on http11/connection.go's
// Serve/shouldCloseAfterRequest shape, rewritten around this package's
// Parser/Request/Response types and extended with the preprocess step
// (100-continue, Expect validation, legacy Connection-token stripping)
// the teacher's loop has no equivalent for.
type Connection struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	parser *Parser

	scheme        string
	serverPort    int
	localHostname string
	hosts         *HostTable

	readTimeout time.Duration
	maxRequests int // 0 means unlimited (spec §9, grounded on http11.ConnectionConfig.MaxRequests)

	requestCount int
}

// NewConnection wraps conn for one HTTP/1.1 session. scheme/serverPort/
// localHostname are injected by the socket factory/acceptor (spec §4.6
// step 4, "scheme from the injected socket factory"); hosts resolves
// each request's virtual host (spec §4.9). readTimeout bounds idle time
// between requests and is cleared once the request line and header block
// have been parsed (spec §5's suspension-point timeout semantics); zero
// disables it. maxRequests
// caps the number of transactions served before the connection closes
// regardless of Connection headers; zero means unlimited.
func NewConnection(conn net.Conn, scheme string, serverPort int, localHostname string, hosts *HostTable, readTimeout time.Duration, maxRequests int) *Connection {
	reader := GetBufioReader(conn)
	return &Connection{
		conn:          conn,
		reader:        reader,
		writer:        GetBufioWriter(conn),
		parser:        GetParser(reader),
		scheme:        scheme,
		serverPort:    serverPort,
		localHostname: localHostname,
		hosts:         hosts,
		readTimeout:   readTimeout,
		maxRequests:   maxRequests,
	}
}

// Serve runs the connection loop (spec §4.11's pseudocode) until the
// transaction or protocol version calls for the connection to close,
// then closes the underlying socket and returns its pooled objects.
func (c *Connection) Serve() {
	defer c.conn.Close()
	defer c.cleanup()

	for c.serveOne() {
	}
}

// cleanup returns the connection's pooled bufio/parser objects.
func (c *Connection) cleanup() {
	PutBufioReader(c.reader)
	PutBufioWriter(c.writer)
	PutParser(c.parser)
}

// serveOne handles one request/response transaction and reports whether
// the loop should continue to the next one.
func (c *Connection) serveOne() bool {
	c.setReadDeadline()

	req := GetRequest()
	defer PutRequest(req)
	resp := GetResponse(c.writer)
	defer PutResponse(resp)

	req.RemoteAddr = c.conn.RemoteAddr().String()
	req.bindServerContext(c.scheme, c.serverPort, c.localHostname, c.hosts)

	if err := c.parser.Parse(req); err != nil {
		return c.recoverFromParseError(err, resp)
	}
	c.clearReadDeadline()

	SetupBody(req, c.reader)
	resp.Configure(req)

	if preprocess(req, resp) {
		if err := Dispatch(resp, req); err != nil && !resp.HeadersSent() {
			resp.SendError(500, "")
		}
	}

	if err := resp.Close(); err != nil {
		return false
	}
	if err := req.Body.Drain(); err != nil {
		return false
	}
	if _, ok := req.Body.(*untilCloseBody); ok {
		return false
	}

	c.requestCount++
	if c.maxRequests > 0 && c.requestCount >= c.maxRequests {
		return false
	}

	return req.Version == HTTP11 && !connWantsClose(req.Headers) && !connWantsClose(resp.Headers)
}

// recoverFromParseError implements spec §4.11's catch branch for the
// "req is null" case: a missing request line between transactions is a
// quiet idle disconnect, a read timeout becomes 408, anything else 400.
func (c *Connection) recoverFromParseError(err error, resp *Response) bool {
	if errors.Is(err, ErrMissingRequestLine) {
		return false
	}
	if isTimeout(err) {
		resp.SendError(408, "")
	} else {
		resp.SendError(400, "")
	}
	resp.Close()
	return false
}

func (c *Connection) setReadDeadline() {
	if c.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
}

func (c *Connection) clearReadDeadline() {
	if c.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Time{})
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// preprocess implements spec §4.11's numbered preprocessing rules.
// Returns false once it has already written a terminal response (400 or
// 417), telling the caller to skip dispatch.
func preprocess(req *Request, resp *Response) bool {
	switch req.Version {
	case HTTP11:
		if !req.Headers.Contains(HeaderHost) {
			resp.SendError(400, "")
			return false
		}
		if expect, ok := req.Headers.Get(HeaderExpect); ok {
			if !strings.EqualFold(strings.TrimSpace(expect), "100-continue") {
				resp.SendError(417, "")
				return false
			}
			if err := resp.SendContinue(); err != nil {
				return false
			}
		}
	case HTTP10, HTTP09:
		if conn, ok := req.Headers.Get(HeaderConnection); ok {
			for _, tok := range splitTokens(conn) {
				req.Headers.RemoveAll(tok)
			}
		}
	default:
		resp.SendError(400, "")
		return false
	}
	return true
}

// connWantsClose reports whether h's Connection header carries a "close"
// token (spec §4.11's loop termination condition).
func connWantsClose(h *Headers) bool {
	v, ok := h.Get(HeaderConnection)
	if !ok {
		return false
	}
	for _, tok := range splitTokens(v) {
		if strings.EqualFold(tok, "close") {
			return true
		}
	}
	return false
}
