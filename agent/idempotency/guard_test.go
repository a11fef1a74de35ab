package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
	storex "github.com/tanpawarit/chative-procurement/agent/store"
)

func draft() contractx.DraftOrder {
	return contractx.DraftOrder{
		OrganizationID: "org-1",
		VendorID:       "vendor-1",
		Items:          []contractx.OrderItem{{ProductID: "p-1", Quantity: 2}},
		TotalAmount:    19.98,
		Currency:       "USD",
		Notes:          "deliver monday",
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestGuardReusesIdenticalDraftWithinWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	mem := storex.NewMemory()
	guard, err := NewGuard(mem, WithClock(c.now))
	require.NoError(t, err)

	first, err := guard.ReuseOrCreate(ctx, draft())
	require.NoError(t, err)

	c.t = c.t.Add(90 * time.Second)
	second, err := guard.ReuseOrCreate(ctx, draft())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, mem.DraftOrders(), 1)
}

func TestGuardCreatesAfterWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	mem := storex.NewMemory()
	guard, err := NewGuard(mem, WithClock(c.now))
	require.NoError(t, err)

	first, err := guard.ReuseOrCreate(ctx, draft())
	require.NoError(t, err)

	c.t = c.t.Add(2*time.Minute + time.Second)
	second, err := guard.ReuseOrCreate(ctx, draft())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, mem.DraftOrders(), 2)
}

func TestGuardReusesDraftPastNewerSubmittedOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	mem := storex.NewMemory(storex.WithClock(c.now))
	guard, err := NewGuard(mem, WithClock(c.now))
	require.NoError(t, err)

	first, err := guard.ReuseOrCreate(ctx, draft())
	require.NoError(t, err)

	c.t = c.t.Add(20 * time.Second)
	submitted := draft()
	submitted.Status = contractx.DraftOrderSubmitted
	submitted.CreatedAt = c.t
	_, err = mem.CreateDraftOrder(ctx, submitted)
	require.NoError(t, err)

	c.t = c.t.Add(20 * time.Second)
	second, err := guard.ReuseOrCreate(ctx, draft())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, mem.DraftOrders(), 2)
}

func TestGuardCreatesWhenContentDiffers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*contractx.DraftOrder)
	}{
		{name: "notes", mutate: func(o *contractx.DraftOrder) { o.Notes = "deliver tuesday" }},
		{name: "total", mutate: func(o *contractx.DraftOrder) { o.TotalAmount = 20 }},
		{name: "quantity", mutate: func(o *contractx.DraftOrder) { o.Items[0].Quantity = 3 }},
		{name: "vendor", mutate: func(o *contractx.DraftOrder) { o.VendorID = "vendor-2" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
			mem := storex.NewMemory()
			guard, err := NewGuard(mem, WithClock(c.now))
			require.NoError(t, err)

			first, err := guard.ReuseOrCreate(ctx, draft())
			require.NoError(t, err)

			next := draft()
			tt.mutate(&next)
			second, err := guard.ReuseOrCreate(ctx, next)
			require.NoError(t, err)
			assert.NotEqual(t, first.ID, second.ID)
		})
	}
}

func TestGuardRejectsMissingVendor(t *testing.T) {
	t.Parallel()

	guard, err := NewGuard(storex.NewMemory())
	require.NoError(t, err)

	order := draft()
	order.VendorID = ""
	_, err = guard.ReuseOrCreate(context.Background(), order)
	assert.ErrorIs(t, err, contractx.ErrValidation)
}

type mapCache struct {
	entries map[string]string
	getErr  error
	sets    int
}

func (m *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	id, ok := m.entries[key]
	return id, ok, nil
}

func (m *mapCache) Set(_ context.Context, key, orderID string, _ time.Duration) error {
	m.sets++
	m.entries[key] = orderID
	return nil
}

func TestGuardUsesWindowCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	mem := storex.NewMemory()
	cache := &mapCache{entries: map[string]string{}}
	guard, err := NewGuard(mem, WithClock(c.now), WithCache(cache))
	require.NoError(t, err)

	first, err := guard.ReuseOrCreate(ctx, draft())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	key, err := Key(draft())
	require.NoError(t, err)
	assert.Equal(t, first.ID, cache.entries[key])

	second, err := guard.ReuseOrCreate(ctx, draft())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, cache.sets)
}

func TestGuardFallsBackToStoreOnCacheError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := storex.NewMemory()
	cache := &mapCache{entries: map[string]string{}, getErr: errors.New("unreachable")}
	guard, err := NewGuard(mem, WithCache(cache))
	require.NoError(t, err)

	first, err := guard.ReuseOrCreate(ctx, draft())
	require.NoError(t, err)
	second, err := guard.ReuseOrCreate(ctx, draft())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestNewGuardRequiresStore(t *testing.T) {
	t.Parallel()

	_, err := NewGuard(nil)
	assert.ErrorIs(t, err, contractx.ErrConfiguration)
}
