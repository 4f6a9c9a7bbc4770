package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrDocumentUnreadable is returned when normalized input is too short to be
// worth sending to any provider. No provider call is made.
var ErrDocumentUnreadable = eris.New("document unreadable: text too short after normalization")

// QuotaError reports a rejected admission check, with how long to wait
// before the window resets.
type QuotaError struct {
	Identifier string
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Identifier, e.RetryAfter)
}

// AsQuota extracts a QuotaError from an error chain.
func AsQuota(err error) (*QuotaError, bool) {
	var qe *QuotaError
	ok := errors.As(err, &qe)
	return qe, ok
}

// AllProvidersFailedError aggregates the per-provider failure reasons when
// every fallback candidate failed or was skipped.
type AllProvidersFailedError struct {
	Failures []string
}

func (e *AllProvidersFailedError) Error() string {
	return "all providers failed: " + strings.Join(e.Failures, "; ")
}
