package strategy

import "errors"

var (
	// ErrOrderCanceled is returned when the exchange canceled a hedge order.
	ErrOrderCanceled = errors.New("strategy: order canceled")

	// ErrOrderTimedOut is returned when a hedge order is still open after
	// the last confirmation poll.
	ErrOrderTimedOut = errors.New("strategy: order timed out")

	// ErrTransferFailed is returned when a collateral transfer step failed.
	ErrTransferFailed = errors.New("strategy: transfer failed")

	// ErrHedgeNotConverged is returned when the confirmation snapshot taken
	// right after a filled order still demands a trade. Operator attention
	// is required; no corrective order is placed.
	ErrHedgeNotConverged = errors.New("strategy: hedge did not converge")

	ErrNegativeLiability  = errors.New("strategy: negative liability")
	ErrInvalidPrice       = errors.New("strategy: price must be positive")
	ErrBelowMinimumSize   = errors.New("strategy: order below minimum size")
	ErrInstrumentMismatch = errors.New("strategy: instrument does not match configured bounds")
)
