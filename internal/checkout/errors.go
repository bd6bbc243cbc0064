package checkout

import (
	"fmt"

	"github.com/safar/go-cart-checkout/internal/models"
)

// Stage identifies where in the pipeline a checkout stopped.
type Stage int

const (
	StageLoad Stage = iota
	StageValidate
	StageDecrement
	StageRecord
	StageInvoice
	StageClear
)

func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "load"
	case StageValidate:
		return "validate"
	case StageDecrement:
		return "decrement"
	case StageRecord:
		return "record"
	case StageInvoice:
		return "invoice"
	case StageClear:
		return "clear"
	default:
		return "unknown"
	}
}

// PartialFailureError is raised when a checkout fails after at least one
// durable mutation: stock was decremented for Done lines (and, past the
// decrement stage, for Failed too) with no matching order record for the
// failing line. Nothing is rolled back; the caller must surface this for
// operator follow-up rather than retry it blindly.
type PartialFailureError struct {
	Stage  Stage
	Done   []models.CartLine
	Failed models.CartLine
	Err    error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("checkout failed at stage %s after %d line(s) applied, failing on product %d: %v",
		e.Stage, len(e.Done), e.Failed.ProductID, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
