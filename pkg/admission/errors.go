package admission

import "errors"

// ErrNoReferencePrice is returned admitting an immediate-execution order
// for an instrument the matcher has never seen a trade for: always for a
// Market order, and for a priced ImmediateOrCancel or FillOrKill order when
// no opposing order rests in the book. Apart from resting orders the
// engine's only liquidity source is the historical trade tape, so there is
// no price to execute against yet.
var ErrNoReferencePrice = errors.New("admission: no reference price available for immediate execution")

// ErrImmediateOrCancelUnfilled is returned when an ImmediateOrCancel order
// crosses neither a resting opposing order nor the last-observed trade
// price and therefore cannot take any size at admission.
var ErrImmediateOrCancelUnfilled = errors.New("admission: immediate-or-cancel order did not cross and was cancelled")

// ErrFillOrKillUnfilled is returned when a FillOrKill order cannot be
// filled in full at admission, either against the resting opposing orders
// its price crosses or, with none resting, against the last-observed trade
// price; no reservation or book state change survives this rejection.
var ErrFillOrKillUnfilled = errors.New("admission: fill-or-kill order could not be filled in full")

// ErrNothingToReduce is returned for a reduce-only request when no
// opposing position exists to reduce.
var ErrNothingToReduce = errors.New("admission: reduce-only request has no opposing position to reduce")
