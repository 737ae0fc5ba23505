// Package socket applies TCP tuning to connections accepted by the
// acceptor (spec §4.11's "after setting SO_TIMEOUT and TCP_NODELAY").
package socket

import (
	"net"

	"golang.org/x/sys/unix"
)

// Config is the set of TCP options applied to each accepted connection.
// Zero values leave the system default in place. Grounded on the
// teacher's socket.Config, narrowed to the knobs that matter for a
// strictly serial, one-request-at-a-time connection model: FastOpen and
// DeferAccept are dropped (SPEC_FULL.md §4 — they target high-QPS edge
// listeners, not this engine's scope).
type Config struct {
	NoDelay    bool
	RecvBuffer int
	SendBuffer int
	KeepAlive  bool
}

// DefaultConfig returns the tuning the acceptor applies unless overridden.
func DefaultConfig() *Config {
	return &Config{NoDelay: true, KeepAlive: true}
}

// Apply sets cfg's options on conn, using golang.org/x/sys/unix instead
// of the teacher's raw syscall.SetsockoptInt calls. Connections that
// aren't *net.TCPConn (net.Pipe in tests, for instance) are left
// untouched rather than erroring.
func Apply(conn net.Conn, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var firstErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		if cfg.NoDelay {
			if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); e != nil {
				firstErr = e
				return
			}
		}
		if cfg.RecvBuffer > 0 {
			_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RecvBuffer)
		}
		if cfg.SendBuffer > 0 {
			_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBuffer)
		}
		if cfg.KeepAlive {
			_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
			applyKeepaliveTuning(int(fd))
		}
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return firstErr
}
