package proxy

import (
	"fmt"
	"net"
)

// AllocatePort finds a free TCP port on loopback within [low, high] by
// probing each candidate with a real listen-then-close, rather than trying
// to track usage itself; that's the only way to be sure another process
// hasn't already claimed it. It returns the first port that accepted a
// listener.
func AllocatePort(low, high int) (int, error) {
	if low <= 0 || high < low {
		return 0, fmt.Errorf("proxy: invalid port range [%d, %d]", low, high)
	}
	for port := low; port <= high; port++ {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("proxy: no free port in range [%d, %d]", low, high)
}

// AllocateEphemeralPort asks the kernel for any free loopback port by
// listening on port 0, reading back the port the OS assigned.
func AllocateEphemeralPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}
