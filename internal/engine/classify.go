package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Classification labels a provider failure so the executor can decide whether
// to retry, how long to wait, and whether the failure counts against the
// circuit breaker.
type Classification struct {
	IsRateLimit    bool
	IsTimeout      bool
	IsNetworkError bool
	IsTransient    bool
	IsPermanent    bool
	RetryAfter     time.Duration
	ShouldRetry    bool
}

var retryAfterPattern = regexp.MustCompile(`retry[- _]?after[:= ]+(\d+)`)

// Classify inspects an error and labels it. It is a pure function of the
// error text: provider SDKs surface status codes and transport failures as
// message substrings, so matching on them covers HTTP providers, SDK errors
// and raw net errors alike.
func Classify(err error) Classification {
	var c Classification
	if err == nil {
		return c
	}

	msg := strings.ToLower(err.Error())

	c.IsRateLimit = strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "throttle")

	c.IsTimeout = strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "etimedout") ||
		strings.Contains(msg, "econnreset") ||
		strings.Contains(msg, "context deadline exceeded")

	c.IsNetworkError = strings.Contains(msg, "econnrefused") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "enotfound") ||
		strings.Contains(msg, "network") ||
		strings.Contains(msg, "fetch failed")

	serverError := strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "internal server error") ||
		strings.Contains(msg, "bad gateway") ||
		strings.Contains(msg, "service unavailable")

	c.IsTransient = c.IsRateLimit || c.IsTimeout || c.IsNetworkError || serverError

	c.IsPermanent = strings.Contains(msg, "401") ||
		strings.Contains(msg, "403") ||
		strings.Contains(msg, "400") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden")

	if m := retryAfterPattern.FindStringSubmatch(msg); m != nil {
		if secs, err := strconv.Atoi(m[1]); err == nil && secs > 0 {
			c.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	c.ShouldRetry = c.IsTransient && !c.IsPermanent
	return c
}
