package ratelimit

import "strings"

// unlimitedPaths are never throttled regardless of method configuration.
var unlimitedPaths = map[string]bool{
	"/health": true,
}

// MatchEndpoint returns the configuration for a request, or nil when the default limit
// applies. Exact paths win over prefixes; a prefix is a configured path ending in "/".
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == "GET" && unlimitedPaths[path] {
		return &EndpointConfig{Path: path, Method: method}
	}

	var prefix *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if !strings.EqualFold(c.Method, method) {
			continue
		}
		if c.Path == path {
			return c
		}
		if prefix == nil && strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			prefix = c
		}
	}
	return prefix
}
