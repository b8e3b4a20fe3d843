package source

import (
	"context"

	"cart-analytics/internal/models"
)

// Source hands the pipeline one snapshot of the raw tables.
type Source interface {
	Load(ctx context.Context) (*models.Dataset, error)
	Name() string
}

// Versioned sources can tell whether their content changed since a previous
// load. An unchanged version lets callers reuse a cached fact set.
type Versioned interface {
	Version() (string, error)
}
