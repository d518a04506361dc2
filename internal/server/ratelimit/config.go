package ratelimit

import (
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // exact path, or a prefix when it ends with "/"
	Method string
	Limit  int           // requests per Window
	Window time.Duration
	Burst  int           // defaults to Limit if 0
}

// OptimizeEndpoints limits the model-backed routes to perMinute requests per client and
// leaves the rest on the default limit.
func OptimizeEndpoints(perMinute float64, burst int) []EndpointConfig {
	limit := int(perMinute)
	if limit <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = limit
	}
	return []EndpointConfig{
		{Path: "/v1/optimize", Method: "POST", Limit: limit, Window: time.Minute, Burst: burst},
	}
}

// ParseList turns a list of client ids into a lookup set, skipping blanks.
func ParseList(ids []string) map[string]bool {
	result := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			result[id] = true
		}
	}
	return result
}
