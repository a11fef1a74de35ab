package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

const DefaultWindow = 2 * time.Minute

// WindowCache remembers the draft order created for a dedup key for the
// length of the window. It is an accelerator; the store stays authoritative.
type WindowCache interface {
	Get(ctx context.Context, key string) (orderID string, ok bool, err error)
	Set(ctx context.Context, key, orderID string, ttl time.Duration) error
}

type Option func(*Guard)

func WithWindow(window time.Duration) Option {
	return func(g *Guard) {
		if window > 0 {
			g.window = window
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

func WithCache(cache WindowCache) Option {
	return func(g *Guard) {
		g.cache = cache
	}
}

// Guard returns an existing draft order instead of inserting an identical one
// created within the window.
type Guard struct {
	orders contractx.DraftOrderStore
	cache  WindowCache
	window time.Duration
	now    func() time.Time
}

func NewGuard(orders contractx.DraftOrderStore, opts ...Option) (*Guard, error) {
	if orders == nil {
		return nil, fmt.Errorf("%w: draft order store is required", contractx.ErrConfiguration)
	}
	g := &Guard{
		orders: orders,
		window: DefaultWindow,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

func (g *Guard) ReuseOrCreate(ctx context.Context, order contractx.DraftOrder) (contractx.DraftOrder, error) {
	if strings.TrimSpace(order.OrganizationID) == "" || strings.TrimSpace(order.VendorID) == "" {
		return contractx.DraftOrder{}, fmt.Errorf("%w: draft order needs organization and vendor", contractx.ErrValidation)
	}

	now := g.now()
	since := now.Add(-g.window)

	key, err := Key(order)
	if err != nil {
		return contractx.DraftOrder{}, err
	}

	if existing, ok := g.fromCache(ctx, key, order, since); ok {
		return existing, nil
	}

	latest, err := g.orders.LatestDraftOrder(ctx, order.OrganizationID, order.VendorID, since)
	switch {
	case err == nil:
		if latest.Status == contractx.DraftOrderDraft && Same(latest, order) {
			log.Debug().
				Str("draft_order_id", latest.ID).
				Str("vendor_id", order.VendorID).
				Msg("reusing draft order within window")
			return latest, nil
		}
	case errors.Is(err, contractx.ErrNotFound):
	default:
		return contractx.DraftOrder{}, fmt.Errorf("latest draft order: %w", err)
	}

	if order.Status == "" {
		order.Status = contractx.DraftOrderDraft
	}
	order.CreatedAt = now
	created, err := g.orders.CreateDraftOrder(ctx, order)
	if err != nil {
		return contractx.DraftOrder{}, err
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, created.ID, g.window); err != nil {
			log.Warn().Err(err).Str("draft_order_id", created.ID).Msg("window cache set failed")
		}
	}
	return created, nil
}

func (g *Guard) fromCache(ctx context.Context, key string, order contractx.DraftOrder, since time.Time) (contractx.DraftOrder, bool) {
	if g.cache == nil {
		return contractx.DraftOrder{}, false
	}
	id, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("window cache get failed")
		return contractx.DraftOrder{}, false
	}
	if !ok {
		return contractx.DraftOrder{}, false
	}
	existing, err := g.orders.GetDraftOrder(ctx, id)
	if err != nil {
		return contractx.DraftOrder{}, false
	}
	if existing.CreatedAt.Before(since) || existing.Status != contractx.DraftOrderDraft || !Same(existing, order) {
		return contractx.DraftOrder{}, false
	}
	return existing, true
}

// Same reports whether two drafts carry the same vendor pair, items in the
// same order, total and notes.
func Same(a, b contractx.DraftOrder) bool {
	if a.OrganizationID != b.OrganizationID || a.VendorID != b.VendorID {
		return false
	}
	if a.TotalAmount != b.TotalAmount || a.Notes != b.Notes {
		return false
	}
	if len(a.Items) != len(b.Items) {
		return false
	}
	for i := range a.Items {
		if a.Items[i] != b.Items[i] {
			return false
		}
	}
	return true
}

// Key derives the dedup key of a draft order.
func Key(order contractx.DraftOrder) (string, error) {
	payload, err := json.Marshal(struct {
		Org   string                `json:"o"`
		Ven   string                `json:"v"`
		Items []contractx.OrderItem `json:"i"`
		Total float64               `json:"t"`
		Notes string                `json:"n"`
	}{order.OrganizationID, order.VendorID, order.Items, order.TotalAmount, order.Notes})
	if err != nil {
		return "", fmt.Errorf("marshal dedup key: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
