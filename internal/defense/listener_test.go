package defense

import (
	"net"
	"testing"
	"time"
)

func TestExtractIP(t *testing.T) {
	tests := []struct {
		addr net.Addr
		want string
	}{
		{&net.TCPAddr{IP: net.ParseIP("192.0.2.1"), Port: 4321}, "192.0.2.1"},
		{&net.TCPAddr{IP: net.ParseIP("::1"), Port: 4321}, "::1"},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := ExtractIP(tt.addr); got != tt.want {
			t.Errorf("ExtractIP(%v) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestFilteredListenerRejectsBlocked(t *testing.T) {
	config := testConfig()
	config.Whitelist = nil // localhost must be blockable for this test
	g := New(config, nil)
	defer g.Close()

	inner, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen error: %v", err)
	}
	l := NewFilteredListener(inner, g, nil)
	defer l.Close()

	accepted := make(chan net.Conn, 2)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()

	// Unblocked connection is accepted.
	conn, err := net.Dial("tcp", inner.Addr().String())
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	select {
	case c := <-accepted:
		c.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("unblocked connection was not accepted")
	}

	// Block localhost, then the next connection must be dropped.
	g.blocklist.Add(&BlockEntry{
		IP:        "127.0.0.1",
		BlockedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
		Reason:    "rate limit exceeded",
	})

	blocked, err := net.Dial("tcp", inner.Addr().String())
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer blocked.Close()

	select {
	case c := <-accepted:
		c.Close()
		t.Error("blocked connection was accepted")
	case <-time.After(200 * time.Millisecond):
		// Rejected: Accept never surfaced the connection.
	}

	// The blocked socket is closed by the server side.
	blocked.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := blocked.Read(buf); err == nil {
		t.Error("expected read on blocked connection to fail")
	}
}
