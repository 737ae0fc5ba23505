// Package server wires an ember.HostTable and socket factory into an
// accept loop: the listener half of spec §4.6's "connection accepted by
// a listening socket" step, generalized from the teacher's BaseServer
// scaffolding (which carried the shutdown/stats bookkeeping but no
// actual Serve loop).
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wattlabs/ember/pkg/ember"
	"github.com/wattlabs/ember/pkg/ember/server/socket"
)

// Logger is the minimal logging surface the acceptor needs. *log.Logger
// satisfies it; the teacher has no structured-logging dependency
// anywhere in shockwave/http11/server, so this stays a plain stdlib
// interface rather than adopting one.
type Logger interface {
	Printf(format string, args ...any)
}

// Config holds the acceptor's tunables. Hosts must be populated before
// Serve/ListenAndServe is called; the acceptor itself never registers
// virtual hosts or contexts.
type Config struct {
	// Addr is the TCP address to listen on (e.g. ":8080").
	Addr string

	// Logger receives accept-loop and per-connection-setup diagnostics.
	// Defaults to log.New(os.Stderr, "ember: ", log.LstdFlags) when nil.
	Logger Logger

	// Hosts resolves each accepted connection's requests to a virtual
	// host and its registered contexts (spec §4.9).
	Hosts *ember.HostTable

	// Scheme is reported to handlers via Request.GetBaseURL ("http" or
	// "https"); the acceptor does not infer it from TLSConfig since a
	// caller may terminate TLS upstream and still want "https" reported
	// on a plain listener.
	Scheme string

	// ReadTimeout bounds idle time between requests on a kept-alive
	// connection (spec §5's suspension-point timeout semantics).
	// Zero disables the deadline.
	ReadTimeout time.Duration

	// MaxKeepAliveRequests caps the number of requests served per
	// connection before it is closed regardless of Connection headers.
	// Zero means unlimited.
	MaxKeepAliveRequests int

	// MaxConcurrentConnections bounds how many connections are served
	// at once; additional accepted sockets block until a slot frees.
	// Zero means unlimited.
	MaxConcurrentConnections int

	// TLSConfig, when set, makes ListenAndServe/Serve terminate TLS on
	// each accepted connection before handing it to the protocol loop.
	TLSConfig *tls.Config

	// Socket carries the TCP tuning applied to each accepted connection
	// (spec §4.11's "after setting SO_TIMEOUT and TCP_NODELAY"). Nil
	// uses socket.DefaultConfig().
	Socket *socket.Config
}

// DefaultConfig returns a Config with the listener bound to ":8080" and
// no request cap or connection limit.
func DefaultConfig() Config {
	return Config{
		Addr:   ":8080",
		Scheme: "http",
	}
}

// Stats tracks acceptor-level counters (SPEC_FULL.md's supplemented
// "connection statistics" feature, grounded on the teacher's Stats type).
type Stats struct {
	TotalConnections  atomic.Uint64
	ActiveConnections atomic.Int64
	ConnectionErrors  atomic.Uint64
	StartTime         time.Time
}

// Duration returns the time since the server started.
func (s *Stats) Duration() time.Duration {
	return time.Since(s.StartTime)
}

// ConnectionsPerSecond returns the average connections accepted per second.
func (s *Stats) ConnectionsPerSecond() float64 {
	d := s.Duration().Seconds()
	if d == 0 {
		return 0
	}
	return float64(s.TotalConnections.Load()) / d
}

// Server accepts connections on a listener and drives each one through
// ember's HTTP/1.1 connection loop until shut down.
type Server struct {
	config   Config
	listener net.Listener
	stats    Stats

	mu       sync.Mutex
	shutdown atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	sem *semaphore.Weighted
}

// New creates a Server from config. Hosts must be non-nil.
func New(config Config) *Server {
	if config.Hosts == nil {
		panic("server: Config.Hosts is required")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.Scheme == "" {
		config.Scheme = "http"
	}
	if config.Socket == nil {
		config.Socket = socket.DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "ember: ", log.LstdFlags)
	}

	s := &Server{
		config: config,
		done:   make(chan struct{}),
		conns:  make(map[net.Conn]struct{}),
	}
	s.stats.StartTime = time.Now()

	if config.MaxConcurrentConnections > 0 {
		s.sem = semaphore.NewWeighted(int64(config.MaxConcurrentConnections))
	}

	return s
}

// ListenAndServe opens a TCP listener on Config.Addr and serves it,
// wrapping it with Config.TLSConfig first when set.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	if s.config.TLSConfig != nil {
		ln = tls.NewListener(ln, s.config.TLSConfig)
	}
	return s.Serve(ln)
}

// Serve accepts connections from l until the listener closes or
// Shutdown/Close is called, serving each on its own goroutine.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	port := addrPort(l.Addr())
	hostname := localHostname()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			s.stats.ConnectionErrors.Add(1)
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.config.Logger.Printf("accept: %v", err)
			return err
		}

		if s.sem != nil {
			if err := s.sem.Acquire(context.Background(), 1); err != nil {
				conn.Close()
				continue
			}
		}

		if err := socket.Apply(conn, s.config.Socket); err != nil {
			s.config.Logger.Printf("socket tuning for %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			if s.sem != nil {
				s.sem.Release(1)
			}
			continue
		}

		s.trackConnection(conn)
		s.stats.TotalConnections.Add(1)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrackConnection(conn)
			if s.sem != nil {
				defer s.sem.Release(1)
			}

			ec := ember.NewConnection(conn, s.config.Scheme, port, hostname, s.config.Hosts,
				s.config.ReadTimeout, s.config.MaxKeepAliveRequests)
			ec.Serve()
		}()
	}
}

// ListenAndServeTLS is a shorthand that loads certFile/keyFile into
// Config.TLSConfig before calling ListenAndServe.
func (s *Server) ListenAndServeTLS(certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return err
	}
	if s.config.TLSConfig == nil {
		s.config.TLSConfig = &tls.Config{}
	}
	s.config.TLSConfig.Certificates = []tls.Certificate{cert}
	return s.ListenAndServe()
}

// Stats returns the server's connection statistics.
func (s *Server) Stats() *Stats {
	return &s.stats
}

func (s *Server) trackConnection(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
	s.stats.ActiveConnections.Add(1)
}

func (s *Server) untrackConnection(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
	s.stats.ActiveConnections.Add(-1)
}

func (s *Server) closeAllConnections() {
	s.connsMu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.connsMu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// Shutdown stops accepting new connections and waits for in-flight ones
// to finish on their own, or force-closes them once ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
	close(s.done)

	idle := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(idle)
	}()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		s.closeAllConnections()
		return ctx.Err()
	}
}

// Close stops accepting connections and force-closes every active one
// immediately.
func (s *Server) Close() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
	close(s.done)

	s.closeAllConnections()
	s.wg.Wait()
	return nil
}

func addrPort(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

func localHostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "localhost"
}
