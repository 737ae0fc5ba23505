//go:build linux

package socket

import "golang.org/x/sys/unix"

// applyKeepaliveTuning narrows the keepalive probe schedule so a dead
// peer is reclaimed well before the kernel's multi-hour default: probing
// starts after 60s idle, repeats every 10s, and gives up after 3 misses.
func applyKeepaliveTuning(fd int) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 60)
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 10)
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3)
}
