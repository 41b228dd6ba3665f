package checkout

import (
	"allocation-service/internal/apperr"
	"fmt"
)

var (
	ErrAttemptNotFound = fmt.Errorf("checkout attempt %w", apperr.ErrNotFound)
	ErrAttemptExists   = fmt.Errorf("checkout attempt already exists for order token: %w", apperr.ErrConflict)
	ErrShuttingDown    = fmt.Errorf("checkout orchestrator is shutting down: %w", apperr.ErrStorage)
)
