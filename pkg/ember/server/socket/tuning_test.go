package socket

import (
	"net"
	"testing"
)

func TestApplyOnNonTCPConnIsNoop(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	if err := Apply(client, DefaultConfig()); err != nil {
		t.Fatalf("Apply on net.Pipe conn should be a no-op, got %v", err)
	}
}

func TestApplyOnTCPConn(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	server := <-accepted
	defer server.Close()

	if err := Apply(server, DefaultConfig()); err != nil {
		t.Fatalf("Apply on real TCP conn: %v", err)
	}
}

func TestApplyWithNilConfigUsesDefaults(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	if err := Apply(client, nil); err != nil {
		t.Fatalf("Apply with nil config should fall back to DefaultConfig, got %v", err)
	}
}
