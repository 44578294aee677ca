package memory

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/errors"
)

// Governor bounds the memory accounted by all partial states and buffers of one job.
// A charge which would exceed the limit fails without changing the accounted total.
// A child Governor also charges its parent, so a node-wide Governor sees the sum of its jobs.
type Governor struct {
	label     string
	limit     int64 // <= 0 means unlimited
	parent    *Governor
	allocated int64
	highWater int64
}

// NewGovernor is a factory for Governors
func NewGovernor(label string, limit int64) *Governor {
	return &Governor{label: label, limit: limit}
}

// NewChildGovernor creates a Governor with its own limit whose charges are also accounted by parent
func NewChildGovernor(label string, limit int64, parent *Governor) *Governor {
	return &Governor{label: label, limit: limit, parent: parent}
}

// Charge accounts bytes, failing with a MemoryLimitExceededError if the limit would be exceeded
func (g *Governor) Charge(bytes int64) error {
	if bytes < 0 {
		return fmt.Errorf("Cannot charge a negative number of bytes (%d)", bytes)
	}
	for {
		current := atomic.LoadInt64(&g.allocated)
		next := current + bytes
		if g.limit > 0 && next > g.limit {
			return errors.MemoryLimitExceededError{Label: g.label, Requested: bytes, Allocated: current, Limit: g.limit}
		}
		if !atomic.CompareAndSwapInt64(&g.allocated, current, next) {
			continue
		}
		if g.parent != nil {
			if err := g.parent.Charge(bytes); err != nil {
				atomic.AddInt64(&g.allocated, -bytes)
				return err
			}
		}
		g.updateHighWater(next)
		return nil
	}
}

// Release returns previously charged bytes
func (g *Governor) Release(bytes int64) {
	atomic.AddInt64(&g.allocated, -bytes)
	if g.parent != nil {
		g.parent.Release(bytes)
	}
}

// Root returns the outermost ancestor of this Governor, or the Governor itself
func (g *Governor) Root() *Governor {
	for g.parent != nil {
		g = g.parent
	}
	return g
}

// Reserve charges bytes and then runs allocate. If allocate fails the charge is rolled back.
func (g *Governor) Reserve(bytes int64, allocate func() error) error {
	if err := g.Charge(bytes); err != nil {
		return err
	}
	if err := allocate(); err != nil {
		g.Release(bytes)
		return err
	}
	return nil
}

// Allocated returns the currently accounted number of bytes
func (g *Governor) Allocated() int64 {
	return atomic.LoadInt64(&g.allocated)
}

// HighWater returns the largest number of bytes accounted at any time
func (g *Governor) HighWater() int64 {
	return atomic.LoadInt64(&g.highWater)
}

// Limit returns the ceiling of this Governor, or 0 if unlimited
func (g *Governor) Limit() int64 {
	if g.limit < 0 {
		return 0
	}
	return g.limit
}

func (g *Governor) updateHighWater(value int64) {
	for {
		hw := atomic.LoadInt64(&g.highWater)
		if value <= hw || atomic.CompareAndSwapInt64(&g.highWater, hw, value) {
			return
		}
	}
}

// Account tracks the bytes one component charged to a shared governor, so that they
// can all be released at once when that component is killed or finishes.
type Account struct {
	parent sifql.MemoryGovernor
	lock   sync.Mutex
	used   int64
	closed bool
}

// NewAccount creates an Account charging parent
func NewAccount(parent sifql.MemoryGovernor) *Account {
	return &Account{parent: parent}
}

// Charge accounts bytes against the parent governor
func (a *Account) Charge(bytes int64) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.closed {
		return fmt.Errorf("Cannot charge a closed memory account")
	}
	if err := a.parent.Charge(bytes); err != nil {
		return err
	}
	a.used += bytes
	return nil
}

// Release returns bytes to the parent governor
func (a *Account) Release(bytes int64) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.closed {
		return
	}
	if bytes > a.used {
		bytes = a.used
	}
	a.used -= bytes
	a.parent.Release(bytes)
}

// Allocated returns the bytes currently held by this Account
func (a *Account) Allocated() int64 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.used
}

// Close releases everything held by this Account. Close is idempotent.
func (a *Account) Close() {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.closed {
		return
	}
	a.parent.Release(a.used)
	a.used = 0
	a.closed = true
}

var (
	_ sifql.MemoryGovernor = (*Governor)(nil)
	_ sifql.MemoryGovernor = (*Account)(nil)
)
