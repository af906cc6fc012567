package server

import (
	"fmt"
	"net"

	"github.com/teranos/promptc/am"
	"github.com/teranos/promptc/errors"
)

// isPortAvailable checks if a port is available for binding
func isPortAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = listener.Close() // best-effort check, the real bind happens next
	return true
}

// findAvailablePort tries the requested port, then the default port, then the
// ten ports above the requested one.
func findAvailablePort(requestedPort int) (int, error) {
	if isPortAvailable(requestedPort) {
		return requestedPort, nil
	}
	if requestedPort != am.DefaultServerPort && isPortAvailable(am.DefaultServerPort) {
		return am.DefaultServerPort, nil
	}
	for port := requestedPort + 1; port <= requestedPort+10 && port <= 65535; port++ {
		if isPortAvailable(port) {
			return port, nil
		}
	}
	return 0, errors.Newf("no available ports found (tried %d, %d and %d-%d)",
		requestedPort, am.DefaultServerPort, requestedPort+1, requestedPort+10)
}
