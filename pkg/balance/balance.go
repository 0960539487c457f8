// Package balance tracks per-token {total, available} balances, applying
// deltas atomically so neither field is ever driven negative.
package balance

import (
	"fmt"

	"github.com/orellana-quant/backtest-account/pkg/common"
)

// Balance is a single token's ledger entry.
type Balance struct {
	CurrentPrice float64
	Total        float64
	Available    float64
}

// Used returns the portion of Total held against open orders.
func (b Balance) Used() float64 {
	return b.Total - b.Available
}

// Delta is applied atomically to a Balance: both resulting fields are
// checked before either is mutated.
type Delta struct {
	Total     float64
	Available float64
}

func (d Delta) String() string {
	return fmt.Sprintf("Delta{total=%+.8f, available=%+.8f}", d.Total, d.Available)
}

// Apply returns the balance that would result from adding d to b, or an
// error if either resulting field would go negative. b itself is never
// mutated by a rejected delta.
func (b Balance) Apply(d Delta) (Balance, error) {
	newTotal := b.Total + d.Total
	newAvailable := b.Available + d.Available
	if newTotal < 0 || newAvailable < 0 {
		return Balance{}, fmt.Errorf("delta would drive balance negative: total=%.8f available=%.8f applying %s", b.Total, b.Available, d)
	}
	b.Total = newTotal
	b.Available = newAvailable
	return b, nil
}

// Ledger holds one Balance per ever-deposited token.
type Ledger struct {
	balances map[common.Token]Balance
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[common.Token]Balance)}
}

// Deposit credits token's total and available by amount, creating the
// entry if this is the token's first deposit.
func (l *Ledger) Deposit(token common.Token, amount float64) Balance {
	b := l.balances[token]
	b.Total += amount
	b.Available += amount
	l.balances[token] = b
	return b
}

func (l *Ledger) Balance(token common.Token) (Balance, error) {
	b, ok := l.balances[token]
	if !ok {
		return Balance{}, &common.UnknownTokenError{Token: token}
	}
	return b, nil
}

func (l *Ledger) HasSufficient(token common.Token, required float64) error {
	b, err := l.Balance(token)
	if err != nil {
		return err
	}
	if b.Available < required {
		return &common.InsufficientBalanceError{Token: token, Available: b.Available, Required: required}
	}
	return nil
}

// Restore sets token's balance directly, bypassing delta validation. It
// exists for reloading a previously persisted snapshot, where the values
// being written were already validated when they were first produced.
func (l *Ledger) Restore(token common.Token, bal Balance) {
	l.balances[token] = bal
}

// All returns every known token's balance, for FetchTokenBalances.
func (l *Ledger) All() map[common.Token]Balance {
	out := make(map[common.Token]Balance, len(l.balances))
	for t, b := range l.balances {
		out[t] = b
	}
	return out
}

func (l *Ledger) apply(token common.Token, d Delta) (Balance, error) {
	b, ok := l.balances[token]
	if !ok {
		return Balance{}, &common.UnknownTokenError{Token: token}
	}
	next, err := b.Apply(d)
	if err != nil {
		return Balance{}, fmt.Errorf("token %s: %w", token, err)
	}
	l.balances[token] = next
	return next, nil
}

// applyOrCreate behaves like apply but lazily creates a zero entry for
// tokens a trade credits for the first time, e.g. the base asset of an
// account's first-ever Buy fill.
func (l *Ledger) applyOrCreate(token common.Token, d Delta) (Balance, error) {
	b := l.balances[token]
	next, err := b.Apply(d)
	if err != nil {
		return Balance{}, fmt.Errorf("token %s: %w", token, err)
	}
	l.balances[token] = next
	return next, nil
}

// ReserveForOpen debits available by the reservation an open request
// requires: quote notional for a Buy, base size for a Sell. Fails with
// InsufficientBalanceError without mutating state.
func (l *Ledger) ReserveForOpen(instrument common.Instrument, side common.Side, price, size float64) (common.Token, Delta, error) {
	token, required := reservationRequirement(instrument, side, price, size)
	if err := l.HasSufficient(token, required); err != nil {
		return token, Delta{}, err
	}
	delta := Delta{Total: 0, Available: -required}
	if _, err := l.apply(token, delta); err != nil {
		return token, Delta{}, err
	}
	return token, delta, nil
}

// ReleaseOnCancel inverts a prior reservation, crediting available back.
func (l *Ledger) ReleaseOnCancel(instrument common.Instrument, side common.Side, price, size float64) (common.Token, Delta, error) {
	token, required := reservationRequirement(instrument, side, price, size)
	delta := Delta{Total: 0, Available: required}
	if _, err := l.apply(token, delta); err != nil {
		return token, Delta{}, err
	}
	return token, delta, nil
}

func reservationRequirement(instrument common.Instrument, side common.Side, price, size float64) (common.Token, float64) {
	if side == common.Buy {
		return instrument.Quote, price * size
	}
	return instrument.Base, size
}

// ReservationToken returns the token a reservation for (instrument, side)
// is held in: quote for a Buy, base for a Sell.
func ReservationToken(instrument common.Instrument, side common.Side) common.Token {
	if side == common.Buy {
		return instrument.Quote
	}
	return instrument.Base
}

// TradeDeltas computes the (base, quote) balance deltas applied on a fill,
// with fees deducted in the asset received: for a Buy, base credits
// size-fee and quote's reservation was already debited at admission; for a
// Sell, quote credits size*price-fee and base debits size (already
// reserved at admission, so only the credit side needs applying for the
// receiving token plus the final debit of the giving token's total).
func TradeDeltas(instrument common.Instrument, side common.Side, price, size, fee float64) (base common.Token, baseDelta Delta, quote common.Token, quoteDelta Delta) {
	base = instrument.Base
	quote = instrument.Quote
	if side == common.Buy {
		baseDelta = Delta{Total: size - fee, Available: size - fee}
		quoteDelta = Delta{Total: -size * price, Available: 0}
		return
	}
	quoteDelta = Delta{Total: size*price - fee, Available: size*price - fee}
	baseDelta = Delta{Total: -size, Available: 0}
	return
}

// ApplyTrade applies the base/quote deltas a fill produces and returns both
// resulting balances.
func (l *Ledger) ApplyTrade(instrument common.Instrument, side common.Side, price, size, fee float64) (baseBal, quoteBal Balance, err error) {
	base, baseDelta, quote, quoteDelta := TradeDeltas(instrument, side, price, size, fee)
	if baseBal, err = l.applyOrCreate(base, baseDelta); err != nil {
		return
	}
	if quoteBal, err = l.applyOrCreate(quote, quoteDelta); err != nil {
		return
	}
	return
}
