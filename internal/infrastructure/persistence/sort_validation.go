package persistence

import (
	"strings"

	"github.com/erp/stockledger/internal/domain/shared"
)

// ValidateSortOrder normalizes a requested direction to ASC or DESC.
// Anything other than desc, including injection attempts, sorts ascending.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "desc") {
		return "DESC"
	}
	return "ASC"
}

// orderBy builds an ORDER BY clause applying the filter's direction to every column
func orderBy(filter shared.Filter, columns ...string) string {
	dir := ValidateSortOrder(filter.OrderDir)
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = col + " " + dir
	}
	return strings.Join(parts, ", ")
}
