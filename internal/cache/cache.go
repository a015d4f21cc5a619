package cache

import (
	"context"
	"time"

	"possettle/backend/internal/domain"
)

// DrawerCache holds the snapshot of the currently open drawer for polling
// terminals. Writers invalidate it after every drawer mutation.
type DrawerCache interface {
	GetOpenDrawer(ctx context.Context) (*domain.CashDrawer, bool, error)
	SetOpenDrawer(ctx context.Context, drawer *domain.CashDrawer, ttl time.Duration) error
	InvalidateOpenDrawer(ctx context.Context) error
}

type NoopDrawerCache struct{}

func (NoopDrawerCache) GetOpenDrawer(_ context.Context) (*domain.CashDrawer, bool, error) {
	return nil, false, nil
}

func (NoopDrawerCache) SetOpenDrawer(_ context.Context, _ *domain.CashDrawer, _ time.Duration) error {
	return nil
}

func (NoopDrawerCache) InvalidateOpenDrawer(_ context.Context) error {
	return nil
}
