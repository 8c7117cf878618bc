package persistence

import (
	"errors"
	"fmt"

	"github.com/erp/stockledger/internal/domain/shared"
	"gorm.io/gorm"
)

// translateError maps gorm sentinel errors onto domain errors.
// TranslateError must be enabled on the connection for duplicate keys to be recognised.
func translateError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	what := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", shared.ErrNotFound, what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s", shared.ErrAlreadyExists, what)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
