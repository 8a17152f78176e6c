package helper

import (
	"strings"

	"github.com/tidwall/match"
)

// MatchHost reports whether address ("host:port") matches any pattern in
// hosts. A pattern without a port matches address at any port; a pattern
// with a port requires an exact port match. Host components are compared
// with shell-style globbing (e.g. "*.example.com"), so a single "*" also
// matches a literal "*" in the address.
func MatchHost(address string, hosts []string) bool {
	addrHost, addrPort := splitHostPort(address)

	for _, pattern := range hosts {
		patHost, patPort := splitHostPort(pattern)
		if patPort != "" && patPort != addrPort {
			continue
		}
		if match.Match(addrHost, patHost) {
			return true
		}
	}
	return false
}

func splitHostPort(hostport string) (host, port string) {
	idx := strings.LastIndex(hostport, ":")
	if idx == -1 {
		return hostport, ""
	}
	return hostport[:idx], hostport[idx+1:]
}
