package negotiator

import (
	"errors"

	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

func asLMError(err error) (*contractx.LanguageModelError, bool) {
	var lmErr *contractx.LanguageModelError
	if errors.As(err, &lmErr) {
		return lmErr, true
	}
	return nil, false
}
