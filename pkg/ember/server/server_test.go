package server

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/wattlabs/ember/pkg/ember"
)

func newTestServer(t *testing.T) (*Server, net.Listener) {
	t.Helper()

	vhost := ember.NewVirtualHost("")
	vhost.AddContext("/ping", ember.MethodGET, func(w *ember.Response, r *ember.Request) int {
		w.Send(200, "pong")
		return 0
	})
	hosts := ember.NewHostTable()
	hosts.Register(vhost)

	cfg := DefaultConfig()
	cfg.Hosts = hosts

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := New(cfg)
	go srv.Serve(ln)

	return srv, ln
}

func TestServerServesRequest(t *testing.T) {
	srv, ln := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	if string(buf[:n]) != "pong" {
		t.Fatalf("body = %q, want pong", buf[:n])
	}
}

func TestServerTracksConnections(t *testing.T) {
	srv, ln := newTestServer(t)
	defer srv.Close()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("GET /ping HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n"))
	br := bufio.NewReader(conn)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if line != "HTTP/1.1 200 OK\r\n" {
		t.Fatalf("status line = %q", line)
	}

	if srv.Stats().TotalConnections.Load() == 0 {
		t.Fatal("expected TotalConnections to be tracked")
	}
}

func TestServerShutdownStopsAccepting(t *testing.T) {
	srv, ln := newTestServer(t)
	addr := ln.Addr().String()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if _, err := net.Dial("tcp", addr); err == nil {
		t.Fatal("expected dial to fail after Shutdown closed the listener")
	}
}
