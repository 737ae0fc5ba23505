//go:build !linux && !darwin

package socket

// applyKeepaliveTuning is a no-op on platforms without a finer-grained
// keepalive knob than SO_KEEPALIVE itself.
func applyKeepaliveTuning(fd int) {}
