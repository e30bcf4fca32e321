package reliability

// IsRateLimitedHTTPStatus reports whether a status code signals quota exhaustion.
func IsRateLimitedHTTPStatus(code int) bool {
	return code == 429
}
