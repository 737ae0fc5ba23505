package ember

import (
	"net"
	"strings"
	"sync"
	"time"
)

// mockConn implements net.Conn over an in-memory buffer, grounded on
// http11's test_helpers_test.go mockConn.
type mockConn struct {
	readData  *strings.Reader
	writeData *strings.Builder
	closed    bool
	deadline  time.Time
	mu        sync.Mutex
}

func newMockConn(data string) *mockConn {
	return &mockConn{
		readData:  strings.NewReader(data),
		writeData: &strings.Builder{},
	}
}

func (m *mockConn) Read(b []byte) (int, error)  { return m.readData.Read(b) }
func (m *mockConn) Write(b []byte) (int, error) { return m.writeData.Write(b) }

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) LocalAddr() net.Addr  { return &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8080} }
func (m *mockConn) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 12345} }

func (m *mockConn) SetDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadline = t
	return nil
}
func (m *mockConn) SetReadDeadline(t time.Time) error  { return m.SetDeadline(t) }
func (m *mockConn) SetWriteDeadline(t time.Time) error { return m.SetDeadline(t) }

func (m *mockConn) GetWritten() string {
	return m.writeData.String()
}

// newTestHostTable returns a HostTable with one default virtual host
// whose handlers are supplied by the caller.
func newTestHostTable(register func(v *VirtualHost)) *HostTable {
	v := NewVirtualHost("")
	register(v)
	t := NewHostTable()
	t.Register(v)
	return t
}
