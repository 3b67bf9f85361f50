package defense

import (
	"log/slog"
	"net"
)

// FilteredListener wraps a net.Listener and drops connections from
// blocked IPs before any bytes are served.
type FilteredListener struct {
	net.Listener
	guard  *Guard
	logger *slog.Logger
}

// NewFilteredListener wraps a listener with the guard.
func NewFilteredListener(l net.Listener, guard *Guard, logger *slog.Logger) *FilteredListener {
	if logger == nil {
		logger = guard.logger
	}
	return &FilteredListener{
		Listener: l,
		guard:    guard,
		logger:   logger,
	}
}

// Accept accepts connections, closing those from blocked IPs without
// a response.
func (l *FilteredListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}

		ip := ExtractIP(conn.RemoteAddr())
		if l.guard.IsBlocked(ip) {
			conn.Close()
			l.logger.Debug("connection rejected",
				"ip", ip,
				"reason", l.guard.BlockReason(ip),
			)
			continue
		}

		return conn, nil
	}
}

// ExtractIP normalizes the IP address of a net.Addr, with or without
// a port.
func ExtractIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}

	addrStr := addr.String()
	host, _, err := net.SplitHostPort(addrStr)
	if err != nil {
		host = addrStr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return host
}
