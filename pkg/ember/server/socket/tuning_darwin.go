//go:build darwin

package socket

import "golang.org/x/sys/unix"

// applyKeepaliveTuning sets the macOS equivalent of TCP_KEEPIDLE (Darwin
// has no separate keepalive-interval/count knobs exposed the way Linux
// does).
func applyKeepaliveTuning(fd int) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPALIVE, 60)
}
