package repositories

import "strings"

// rateLimitMarkers are the substrings the hosted backend puts in its error
// body when a project exceeds its egress or request quota. Matching is by
// message content because the driver surfaces these as opaque errors.
var rateLimitMarkers = []string{"egress", "limit", "exceeded", "too many requests"}

// IsRateLimited reports whether err looks like a rate/quota-limit response.
// Rate-limited batches get an extended backoff before the next attempt
// instead of aborting the whole operation.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
