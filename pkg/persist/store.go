// Package persist provides a Pebble-backed snapshot store for the
// account's balances, positions, and resting orders, so a backtest run
// can be paused and resumed without replaying the trade tape from the
// start.
package persist

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/orellana-quant/backtest-account/pkg/balance"
	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/idgen"
	"github.com/orellana-quant/backtest-account/pkg/order"
	"github.com/orellana-quant/backtest-account/pkg/position"
)

// Store persists account state to a Pebble database.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) a Pebble database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
	})
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveBalance persists one token's ledger entry.
func (s *Store) SaveBalance(token common.Token, bal balance.Balance) error {
	data, err := json.Marshal(bal)
	if err != nil {
		return fmt.Errorf("persist: marshal balance %s: %w", token, err)
	}
	return s.db.Set(balanceKey(string(token)), data, pebble.Sync)
}

// LoadBalances loads every persisted token balance.
func (s *Store) LoadBalances() (map[common.Token]balance.Balance, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefixBalance),
		UpperBound: keyUpperBound([]byte(prefixBalance)),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make(map[common.Token]balance.Balance)
	for iter.First(); iter.Valid(); iter.Next() {
		token := string(iter.Key()[len(prefixBalance):])
		var bal balance.Balance
		if err := json.Unmarshal(iter.Value(), &bal); err != nil {
			continue
		}
		out[common.Token(token)] = bal
	}
	return out, nil
}

// SavePosition persists one open position, keyed by instrument and side.
func (s *Store) SavePosition(pos *position.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("persist: marshal position: %w", err)
	}
	key := positionKey(pos.Meta.Instrument.Symbol(), pos.Meta.Side.String())
	return s.db.Set(key, data, pebble.Sync)
}

// DeletePosition removes a position entry, e.g. once it has fully closed.
func (s *Store) DeletePosition(instrument common.Instrument, side common.Side) error {
	return s.db.Delete(positionKey(instrument.Symbol(), side.String()), pebble.Sync)
}

// LoadOpenPositions loads every persisted open position.
func (s *Store) LoadOpenPositions() ([]*position.Position, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: positionPrefix(),
		UpperBound: keyUpperBound(positionPrefix()),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*position.Position
	for iter.First(); iter.Valid(); iter.Next() {
		var pos position.Position
		if err := json.Unmarshal(iter.Value(), &pos); err != nil {
			continue
		}
		out = append(out, &pos)
	}
	return out, nil
}

// SaveExitedPosition archives a fully closed position.
func (s *Store) SaveExitedPosition(pos *position.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("persist: marshal exited position: %w", err)
	}
	return s.db.Set(exitedPositionKey(uint64(pos.Meta.PositionId)), data, pebble.NoSync)
}

// LoadExitedPositions loads the archive of closed positions.
func (s *Store) LoadExitedPositions() (map[idgen.PositionId]*position.Position, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: exitedPositionPrefix(),
		UpperBound: keyUpperBound(exitedPositionPrefix()),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make(map[idgen.PositionId]*position.Position)
	for iter.First(); iter.Valid(); iter.Next() {
		var pos position.Position
		if err := json.Unmarshal(iter.Value(), &pos); err != nil {
			continue
		}
		out[pos.Meta.PositionId] = &pos
	}
	return out, nil
}

// SaveOrder persists a resting order.
func (s *Store) SaveOrder(o *order.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("persist: marshal order: %w", err)
	}
	key := orderKey(o.Instrument.Symbol(), o.Side.String(), o.Cid)
	return s.db.Set(key, data, pebble.Sync)
}

// DeleteOrder removes an order entry once it fills or is cancelled.
func (s *Store) DeleteOrder(instrument common.Instrument, side common.Side, cid string) error {
	return s.db.Delete(orderKey(instrument.Symbol(), side.String(), cid), pebble.Sync)
}

// LoadOpenOrders loads every persisted resting order.
func (s *Store) LoadOpenOrders() ([]*order.Order, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: orderPrefix(),
		UpperBound: keyUpperBound(orderPrefix()),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*order.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o order.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue
		}
		out = append(out, &o)
	}
	return out, nil
}

// Batch groups several writes into one atomic, synced commit, for
// checkpointing a full account snapshot in one fsync.
type Batch struct {
	batch *pebble.Batch
}

func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

func (b *Batch) SaveBalance(token common.Token, bal balance.Balance) error {
	data, err := json.Marshal(bal)
	if err != nil {
		return err
	}
	return b.batch.Set(balanceKey(string(token)), data, nil)
}

func (b *Batch) SavePosition(pos *position.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	return b.batch.Set(positionKey(pos.Meta.Instrument.Symbol(), pos.Meta.Side.String()), data, nil)
}

func (b *Batch) SaveOrder(o *order.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return b.batch.Set(orderKey(o.Instrument.Symbol(), o.Side.String(), o.Cid), data, nil)
}

func (b *Batch) Commit() error { return b.batch.Commit(pebble.Sync) }
func (b *Batch) Close() error  { return b.batch.Close() }
