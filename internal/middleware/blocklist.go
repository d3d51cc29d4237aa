package middleware

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"unscored/internal/observability"
)

// BlockStore persists blocked addresses.
type BlockStore interface {
	BlockedAddresses(ctx context.Context) ([]string, error)
	BlockAddress(ctx context.Context, addr string) error
	UnblockAddress(ctx context.Context, addr string) error
}

// Blocklist is the in-memory set of blocked client addresses, written
// through to its store.
type Blocklist struct {
	mu    sync.RWMutex
	addrs map[string]struct{}
	store BlockStore
}

// NewBlocklist returns an empty Blocklist backed by store.
func NewBlocklist(store BlockStore) *Blocklist {
	return &Blocklist{addrs: make(map[string]struct{}), store: store}
}

// Load replaces the set with the persisted addresses.
func (b *Blocklist) Load(ctx context.Context) error {
	addrs, err := b.store.BlockedAddresses(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addrs = make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		b.addrs[a] = struct{}{}
	}
	return nil
}

// Contains reports whether addr is blocked.
func (b *Blocklist) Contains(addr string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.addrs[addr]
	return ok
}

// Block persists and adds addr.
func (b *Blocklist) Block(ctx context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	if err := b.store.BlockAddress(ctx, addr); err != nil {
		return err
	}
	b.mu.Lock()
	b.addrs[addr] = struct{}{}
	b.mu.Unlock()
	observability.Logger.InfoContext(ctx, "Blocked address", slog.String("ip", addr))
	return nil
}

// Unblock removes addr. It reports false when addr was not blocked.
func (b *Blocklist) Unblock(ctx context.Context, addr string) (bool, error) {
	addr = strings.TrimSpace(addr)
	if !b.Contains(addr) {
		observability.Logger.WarnContext(ctx, "Blocked address not found", slog.String("ip", addr))
		return false, nil
	}
	if err := b.store.UnblockAddress(ctx, addr); err != nil {
		return false, err
	}
	b.mu.Lock()
	delete(b.addrs, addr)
	b.mu.Unlock()
	observability.Logger.InfoContext(ctx, "Unblocked address", slog.String("ip", addr))
	return true, nil
}

// List returns the blocked addresses in order.
func (b *Blocklist) List() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.addrs))
	for a := range b.addrs {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
