// AngelaMos | 2026
// tx.go

package coretest

import (
	"context"
	"sync"
)

// Transactor runs fn directly. With Serialize set it holds a process-wide
// lock for the duration of fn, mimicking a row lock taken inside the tx.
type Transactor struct {
	Serialize bool
	mu        sync.Mutex
	Calls     int
}

func (t *Transactor) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context) error,
) error {
	if t.Serialize {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.Calls++
	}
	return fn(ctx)
}
