package barcode

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrMissingAPIKey is returned when no provider credential is configured.
	ErrMissingAPIKey = errors.New("barcode: provider API key is not configured")

	// ErrNoImage is returned for an empty image payload.
	ErrNoImage = errors.New("barcode: no image provided")
)

// UpstreamError reports a failed provider call: a non-2xx status, a
// timeout, a transport failure or an unparsable body.
type UpstreamError struct {
	StatusCode int    // provider status, 0 when no response was received
	Body       string // truncated provider body for diagnostics
	Timeout    bool   // the call exceeded its deadline
	Err        error  // underlying transport or parse error, if any
}

// Error keeps transport details out of the message; they are reachable via Unwrap.

func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return "Cloudmersive request timed out"
	case e.StatusCode == 0:
		return "Cloudmersive request failed"
	case e.Err != nil:
		return fmt.Sprintf("Cloudmersive HTTP %d: invalid response", e.StatusCode)
	default:
		return fmt.Sprintf("Cloudmersive HTTP %d", e.StatusCode)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// truncateBody keeps at most n bytes of body without splitting a UTF-8 sequence.
func truncateBody(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	cut := body[:n]
	for i := 0; i < utf8.UTFMax-1 && len(cut) > 0; i++ {
		if r, size := utf8.DecodeLastRune(cut); r != utf8.RuneError || size != 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return string(cut)
}
