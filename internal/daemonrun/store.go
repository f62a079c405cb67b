package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"daemonkit/internal/store"
)

var errStoreUnavailable = errors.New("store unavailable")

// storeHandle opens the store on first use so a missing or locked database
// fails a cycle instead of the daemon.
type storeHandle struct {
	path string

	mu sync.Mutex
	st *store.Store
}

func newStoreHandle(path string) *storeHandle {
	return &storeHandle{path: path}
}

func (h *storeHandle) get(ctx context.Context) (*store.Store, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.st != nil {
		return h.st, nil
	}
	st, err := store.Open(ctx, h.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errStoreUnavailable, err)
	}
	h.st = st
	return st, nil
}

// reset reconnects an open store, or retries the first open.
func (h *storeHandle) reset(ctx context.Context) error {
	h.mu.Lock()
	st := h.st
	h.mu.Unlock()
	if st != nil {
		return st.Reset(ctx)
	}
	_, err := h.get(ctx)
	return err
}

func (h *storeHandle) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.st == nil {
		return nil
	}
	err := h.st.Close()
	h.st = nil
	return err
}

// recoverable reports errors cleared by reconnecting.
func recoverable(err error) bool {
	return errors.Is(err, errStoreUnavailable) || store.IsTransient(err)
}
