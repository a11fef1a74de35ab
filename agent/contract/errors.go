package contract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("record not found")
	ErrProductNotFound = errors.New("product not found")
	ErrMissingContext  = errors.New("conversation missing organization and vendor context")
	ErrConfiguration   = errors.New("configuration error")
)

// LanguageModelError reports a failed or timed out model call. It is never
// retried by the turn engine; callers decide whether to degrade or fail.
type LanguageModelError struct {
	Status  int
	Body    string
	Timeout bool
	Err     error
}

func (e *LanguageModelError) Error() string {
	var b strings.Builder
	b.WriteString("language model error")
	if e.Timeout {
		b.WriteString(": timeout")
	}
	if e.Status > 0 {
		fmt.Fprintf(&b, ": status=%d", e.Status)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		fmt.Fprintf(&b, " body=%s", body)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *LanguageModelError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrModelInvoke}
	}
	return []error{ErrModelInvoke, e.Err}
}
