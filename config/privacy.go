package config

import (
	"net"
	"net/url"
	"strings"
)

// IsCloud reports whether a provider sends text off the machine.
// "compatible" endpoints count as local only when they resolve to a loopback host.
func IsCloud(provider, baseURL string) bool {
	switch provider {
	case "openai":
		return true
	case "compatible":
		return !isLoopback(baseURL)
	}
	return false
}

func isLoopback(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
