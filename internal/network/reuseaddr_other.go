//go:build !linux && !windows

package network

// SO_REUSEADDR is left at the platform default.
func setReuseAddr(uintptr) error { return nil }
