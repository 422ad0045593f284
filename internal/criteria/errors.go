package criteria

import (
	"fmt"

	"github.com/rpattn/projectledger/internal/domain"
)

// FilterError describes why a filter or sort parameter was rejected.
type FilterError struct {
	Param  string
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid filter %q: %s", e.Param, e.Reason)
}

func (e *FilterError) Unwrap() error {
	return domain.ErrInvalidFilter
}

func filterErr(param, format string, args ...any) error {
	return &FilterError{Param: param, Reason: fmt.Sprintf(format, args...)}
}
