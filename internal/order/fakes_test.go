package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andreasstove999/ecommerce-system/internal/cache"
	"github.com/andreasstove999/ecommerce-system/internal/events"
)

// memRepo keeps orders in memory with the same pending guard as the SQL store.
type memRepo struct {
	mu     sync.Mutex
	orders map[string]*Order

	createFunc     func(ctx context.Context, o *Order) error
	transitionFunc func(ctx context.Context, orderID string, to Status, reason string) (bool, error)
	getErr         error
	creates        int
}

func newMemRepo(orders ...*Order) *memRepo {
	r := &memRepo{orders: map[string]*Order{}}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *memRepo) Create(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createFunc != nil {
		if err := r.createFunc(ctx, o); err != nil {
			return err
		}
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, orderID string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	o, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) ListByUser(ctx context.Context, username string, limit, offset int) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if o.Username == username {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []Order{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) Transition(ctx context.Context, orderID string, to Status, reason string) (bool, error) {
	if r.transitionFunc != nil {
		return r.transitionFunc(ctx, orderID, to, reason)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status != StatusPending {
		return false, nil
	}
	o.Status = to
	o.FailureReason = reason
	return true, nil
}

func (r *memRepo) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, o := range r.orders {
		if o.Status == StatusPending && o.CreatedAt.Before(createdBefore) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *memRepo) status(id string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].Status
}

type published struct {
	queue string
	env   events.Envelope
}

type fakePublisher struct {
	mu      sync.Mutex
	sent    []published
	failFor map[string]error
}

func (p *fakePublisher) Publish(ctx context.Context, queue string, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failFor[env.Type]; err != nil {
		return err
	}
	p.sent = append(p.sent, published{queue: queue, env: env})
	return nil
}

func (p *fakePublisher) ofType(msgType string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.sent {
		if m.env.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

type fakeProducts map[int64]cache.Snapshot

func (f fakeProducts) Get(ctx context.Context, productID int64) (cache.Snapshot, bool, error) {
	s, ok := f[productID]
	return s, ok, nil
}
