package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

func TestMemoryListMessagesReturnsNewestInAscendingOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}))

	conv, err := m.CreateConversation(ctx, contractx.Conversation{OrganizationID: "org"})
	require.NoError(t, err)

	for _, content := range []string{"a", "b", "c", "d"} {
		_, err := m.AppendMessage(ctx, contractx.Message{ConversationID: conv.ID, Role: contractx.RoleUser, Content: content})
		require.NoError(t, err)
	}

	msgs, err := m.ListMessages(ctx, conv.ID, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "b", msgs[0].Content)
	assert.Equal(t, "d", msgs[2].Content)

	got, err := m.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(conv.UpdatedAt))
}

func TestMemoryAppendMessageUnknownConversation(t *testing.T) {
	t.Parallel()

	_, err := NewMemory().AppendMessage(context.Background(), contractx.Message{ConversationID: "missing"})
	assert.ErrorIs(t, err, contractx.ErrNotFound)
}

func TestMemorySearchProductsHonorsVendorScope(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	a := m.PutVendor(contractx.Vendor{Name: "Acme"})
	b := m.PutVendor(contractx.Vendor{Name: "Bolt"})
	m.PutProduct(contractx.Product{VendorID: a.ID, SKU: "BOLT-10", Name: "Hex bolt"})
	m.PutProduct(contractx.Product{VendorID: b.ID, SKU: "BOLT-20", Name: "Carriage bolt"})

	all, err := m.SearchProducts(ctx, contractx.ProductQuery{Term: "bolt"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := m.SearchProducts(ctx, contractx.ProductQuery{VendorIDs: []string{b.ID}, Term: "BOLT"})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, b.ID, scoped[0].VendorID)

	none, err := m.SearchProducts(ctx, contractx.ProductQuery{VendorIDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryLatestConversationPicksMostRecentActivity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(WithClock(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}))

	first, err := m.CreateConversation(ctx, contractx.Conversation{OrganizationID: "org", VendorID: "v"})
	require.NoError(t, err)
	_, err = m.CreateConversation(ctx, contractx.Conversation{OrganizationID: "org", VendorID: "v"})
	require.NoError(t, err)
	_, err = m.AppendMessage(ctx, contractx.Message{ConversationID: first.ID, Role: contractx.RoleUser})
	require.NoError(t, err)

	latest, err := m.LatestConversation(ctx, "org", "v")
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)

	_, err = m.LatestConversation(ctx, "org", "other")
	assert.ErrorIs(t, err, contractx.ErrNotFound)
}

func TestMemoryLatestDraftOrderRespectsSince(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(WithClock(func() time.Time { return now }))

	created, err := m.CreateDraftOrder(ctx, contractx.DraftOrder{OrganizationID: "org", VendorID: "v", TotalAmount: 10})
	require.NoError(t, err)
	assert.Equal(t, contractx.DraftOrderDraft, created.Status)

	got, err := m.LatestDraftOrder(ctx, "org", "v", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = m.LatestDraftOrder(ctx, "org", "v", now.Add(time.Minute))
	assert.ErrorIs(t, err, contractx.ErrNotFound)
}

func TestMemoryLatestDraftOrderSkipsOtherStatuses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(WithClock(func() time.Time { return now }))

	draft, err := m.CreateDraftOrder(ctx, contractx.DraftOrder{OrganizationID: "org", VendorID: "v", TotalAmount: 10})
	require.NoError(t, err)
	_, err = m.CreateDraftOrder(ctx, contractx.DraftOrder{
		OrganizationID: "org",
		VendorID:       "v",
		TotalAmount:    10,
		Status:         contractx.DraftOrderSubmitted,
		CreatedAt:      now.Add(10 * time.Second),
	})
	require.NoError(t, err)

	got, err := m.LatestDraftOrder(ctx, "org", "v", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)
	assert.Equal(t, contractx.DraftOrderDraft, got.Status)
}
