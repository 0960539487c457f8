package orderbook

import "github.com/orellana-quant/backtest-account/pkg/common"

// Set holds one Book per instrument the account has ever touched.
type Set struct {
	books map[common.Instrument]*Book
}

func NewSet() *Set {
	return &Set{books: make(map[common.Instrument]*Book)}
}

// For returns the book for instrument, creating it on first access.
func (s *Set) For(instrument common.Instrument) *Book {
	b, ok := s.books[instrument]
	if !ok {
		b = New(instrument)
		s.books[instrument] = b
	}
	return b
}

// Lookup returns the book for instrument without creating one.
func (s *Set) Lookup(instrument common.Instrument) (*Book, bool) {
	b, ok := s.books[instrument]
	return b, ok
}

// All returns every book the set has created.
func (s *Set) All() map[common.Instrument]*Book {
	return s.books
}

// Exists reports whether an open order with the given client order id is
// currently resting in any instrument's book.
func (s *Set) Exists(cid string) bool {
	if cid == "" {
		return false
	}
	for _, b := range s.books {
		for _, o := range b.AllOpen() {
			if o.Cid == cid {
				return true
			}
		}
	}
	return false
}
