package translate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind classifies a failed translation call.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimited
	KindQuotaExceeded
	KindUnreachable
	KindAuthFailed
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate-limited"
	case KindQuotaExceeded:
		return "quota-exceeded"
	case KindUnreachable:
		return "unreachable"
	case KindAuthFailed:
		return "auth-failed"
	default:
		return "unknown"
	}
}

// HighLoad reports whether the kind is a rate-limit or quota signal.
func (k Kind) HighLoad() bool {
	return k == KindRateLimited || k == KindQuotaExceeded
}

// Error is a classified backend failure.
type Error struct {
	Kind    Kind
	Backend string
	// Status is the HTTP status, 0 for transport failures.
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Backend)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies any error returned by a Gateway. Errors that are not
// *Error values are classified from their transport type and message.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	if isTransportError(err) {
		return KindUnreachable
	}
	return classifyMessage(err.Error())
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// classifyMessage applies the wording backends use for load and quota
// problems.
func classifyMessage(msg string) Kind {
	m := strings.ToLower(msg)
	switch {
	case containsAny(m, "quota exceeded", "resource exhausted", "resource_exhausted", "daily limit exceeded", "quota reached", "character limit"):
		return KindQuotaExceeded
	case containsAny(m, "too many requests", "high load", "rate limit", "user rate limit exceeded", "ratelimitexceeded"):
		return KindRateLimited
	case containsAny(m, "timeout", "timed out", "connection refused", "connection reset",
		"no such host", "name or service not known", "failed to establish"):
		return KindUnreachable
	case containsAny(m, "unauthorized", "forbidden", "invalid api key", "authentication", "permission denied"):
		return KindAuthFailed
	}
	return KindUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// transportError wraps a failure that produced no HTTP response.
func transportError(backend string, err error) *Error {
	kind := KindUnreachable
	if !isTransportError(err) {
		kind = classifyMessage(err.Error())
		if kind == KindUnknown {
			kind = KindUnreachable
		}
	}
	return &Error{Kind: kind, Backend: backend, Err: err}
}

// statusError classifies an HTTP error response of the DeepL API.
func deeplStatusError(status int, body string) *Error {
	e := &Error{Backend: BackendDeepL, Status: status, Message: truncate(strings.TrimSpace(body), 300)}
	switch {
	case status == http.StatusTooManyRequests || status == 529:
		e.Kind = KindRateLimited
	case status == 456:
		e.Kind = KindQuotaExceeded
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuthFailed
	default:
		e.Kind = classifyMessage(body)
	}
	return e
}

// googleStatusError classifies an HTTP error response of the Google API.
// A 403 is a quota signal when the body says so and an auth failure
// otherwise.
func googleStatusError(status int, body string) *Error {
	e := &Error{Backend: BackendGoogle, Status: status, Message: truncate(strings.TrimSpace(body), 300)}
	switch status {
	case http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		if classifyMessage(body) == KindQuotaExceeded {
			e.Kind = KindQuotaExceeded
		}
	case http.StatusForbidden:
		switch k := classifyMessage(body); k {
		case KindQuotaExceeded, KindRateLimited:
			e.Kind = k
		default:
			e.Kind = KindAuthFailed
		}
	case http.StatusUnauthorized:
		e.Kind = KindAuthFailed
	default:
		e.Kind = classifyMessage(body)
	}
	return e
}
