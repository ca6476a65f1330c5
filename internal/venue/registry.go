package venue

import (
	"context"
	"fmt"
	"sort"

	"funding-hedge-bot/internal/domain"
)

// Registry resolves ExchangeID to Operations once at startup. Everything above
// this layer is generic over however many venues are registered; nothing
// dispatches on venue names.
type Registry struct {
	ops map[domain.ExchangeID]*Operations
	ids []domain.ExchangeID
}

func NewRegistry(ops ...*Operations) (*Registry, error) {
	reg := &Registry{ops: make(map[domain.ExchangeID]*Operations, len(ops))}
	for _, op := range ops {
		if _, dup := reg.ops[op.ID()]; dup {
			return nil, fmt.Errorf("duplicate venue %s", op.ID())
		}
		reg.ops[op.ID()] = op
		reg.ids = append(reg.ids, op.ID())
	}
	sort.Slice(reg.ids, func(i, j int) bool { return reg.ids[i].String() < reg.ids[j].String() })
	return reg, nil
}

func (r *Registry) Get(id domain.ExchangeID) (*Operations, bool) {
	op, ok := r.ops[id]
	return op, ok
}

// IDs returns venue identifiers in deterministic lexicographic order.
func (r *Registry) IDs() []domain.ExchangeID {
	out := make([]domain.ExchangeID, len(r.ids))
	copy(out, r.ids)
	return out
}

func (r *Registry) Len() int { return len(r.ops) }

// ConnectAll is fail-closed: a venue that cannot connect at startup keeps the
// whole process from trading.
func (r *Registry) ConnectAll(ctx context.Context) error {
	for _, id := range r.ids {
		if err := r.ops[id].Connect(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) DisconnectAll(ctx context.Context) {
	for _, id := range r.ids {
		_ = r.ops[id].Disconnect(ctx)
	}
}
