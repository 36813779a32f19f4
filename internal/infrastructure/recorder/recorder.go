// Package recorder persists executed swaps. Recording is fire-and-forget
// from the quoting core's point of view.
package recorder

import (
	"context"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

// Recorder is an append-only sink of transaction records
type Recorder interface {
	Record(ctx context.Context, rec entities.TransactionRecord) error
}
