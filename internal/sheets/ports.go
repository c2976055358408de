package sheets

import (
	"context"

	"pfm/internal/core"
)

// Ports for outbound adapters.
type (
	// ActivityWriter exports journal entries to an external ledger.
	ActivityWriter interface {
		AppendActivity(ctx context.Context, a core.Activity) (rowRef string, err error)
	}
)
