// Package network opens the TCP listener the HTTP transport serves on.
package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"syscall"
)

// listenConfig sets SO_REUSEADDR on the socket before it is bound.
func listenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var opErr error
			if err := c.Control(func(fd uintptr) { opErr = setReuseAddr(fd) }); err != nil {
				return err
			}
			return opErr
		},
	}
}

// Listen binds addr with SO_REUSEADDR so a restarted server can rebind a
// port still in TIME_WAIT.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := listenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

// ListenTLS is Listen wrapped in a TLS listener using the given key pair.
func ListenTLS(ctx context.Context, addr, certFile, keyFile string) (net.Listener, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	ln, err := Listen(ctx, addr)
	if err != nil {
		return nil, err
	}
	return tls.NewListener(ln, &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		},
	}), nil
}
