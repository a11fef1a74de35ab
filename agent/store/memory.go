package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

// Memory is a process-local Store used by tests and local runs.
type Memory struct {
	mu sync.RWMutex

	now func() time.Time

	conversations map[string]contractx.Conversation
	messages      map[string][]contractx.Message
	products      []contractx.Product
	vendors       []contractx.Vendor
	approvals     map[string][]string
	agents        []contractx.Agent
	orders        []contractx.DraftOrder
}

var _ contractx.Store = (*Memory)(nil)

type MemoryOption func(*Memory)

func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:           func() time.Time { return time.Now().UTC() },
		conversations: map[string]contractx.Conversation{},
		messages:      map[string][]contractx.Message{},
		approvals:     map[string][]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// PutVendor registers a vendor, assigning an id when empty.
func (m *Memory) PutVendor(v contractx.Vendor) contractx.Vendor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	m.vendors = append(m.vendors, v)
	return v
}

func (m *Memory) PutProduct(p contractx.Product) contractx.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.products = append(m.products, p)
	return p
}

func (m *Memory) PutAgent(a contractx.Agent) contractx.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.agents = append(m.agents, a)
	return a
}

// Approve marks vendorIDs as approved suppliers of the organization.
func (m *Memory) Approve(organizationID string, vendorIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvals[organizationID] = append(m.approvals[organizationID], vendorIDs...)
}

func (m *Memory) GetConversation(_ context.Context, id string) (contractx.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[id]
	if !ok {
		return contractx.Conversation{}, fmt.Errorf("%w: conversation %s", contractx.ErrNotFound, id)
	}
	return conv, nil
}

func (m *Memory) CreateConversation(_ context.Context, conv contractx.Conversation) (contractx.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Status == "" {
		conv.Status = contractx.ConversationOpen
	}
	now := m.now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	m.conversations[conv.ID] = conv
	return conv, nil
}

func (m *Memory) LatestConversation(_ context.Context, organizationID, vendorID string) (contractx.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var (
		best  contractx.Conversation
		found bool
	)
	for _, conv := range m.conversations {
		if conv.OrganizationID != organizationID || conv.VendorID != vendorID {
			continue
		}
		if !found || conv.UpdatedAt.After(best.UpdatedAt) {
			best, found = conv, true
		}
	}
	if !found {
		return contractx.Conversation{}, fmt.Errorf("%w: conversation for organization %s and vendor %s", contractx.ErrNotFound, organizationID, vendorID)
	}
	return best, nil
}

func (m *Memory) AppendMessage(_ context.Context, msg contractx.Message) (contractx.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[msg.ConversationID]
	if !ok {
		return contractx.Message{}, fmt.Errorf("%w: conversation %s", contractx.ErrNotFound, msg.ConversationID)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = m.now()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	conv.UpdatedAt = msg.CreatedAt
	m.conversations[conv.ID] = conv
	return msg, nil
}

func (m *Memory) ListMessages(_ context.Context, conversationID string, limit int) ([]contractx.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.messages[conversationID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]contractx.Message, len(all))
	copy(out, all)
	return out, nil
}

func (m *Memory) SearchProducts(_ context.Context, q contractx.ProductQuery) ([]contractx.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if q.VendorIDs != nil && len(q.VendorIDs) == 0 {
		return []contractx.Product{}, nil
	}
	term := strings.ToLower(strings.TrimSpace(q.Term))
	out := make([]contractx.Product, 0)
	for _, p := range m.products {
		if q.VendorIDs != nil && !contains(q.VendorIDs, p.VendorID) {
			continue
		}
		if term != "" && !productMatches(p, term) {
			continue
		}
		out = append(out, p)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func productMatches(p contractx.Product, term string) bool {
	for _, field := range []string{p.Name, p.SKU, p.Description, p.Brand, p.Category} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func (m *Memory) GetProduct(_ context.Context, id string) (contractx.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return contractx.Product{}, fmt.Errorf("%w: product %s", contractx.ErrNotFound, id)
}

func (m *Memory) ProductsByIDs(_ context.Context, ids []string) ([]contractx.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]contractx.Product, 0, len(ids))
	for _, p := range m.products {
		if contains(ids, p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) ProductsBySKUs(_ context.Context, skus []string) ([]contractx.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]contractx.Product, 0, len(skus))
	for _, p := range m.products {
		if p.SKU != "" && contains(skus, p.SKU) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) FindProductBySKU(_ context.Context, sku, vendorID string) (contractx.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.products {
		if p.SKU == "" || !strings.EqualFold(p.SKU, sku) {
			continue
		}
		if vendorID != "" && p.VendorID != vendorID {
			continue
		}
		return p, nil
	}
	return contractx.Product{}, fmt.Errorf("%w: product sku %s", contractx.ErrNotFound, sku)
}

func (m *Memory) FindProductByName(_ context.Context, name string, vendorIDs []string) (contractx.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return contractx.Product{}, fmt.Errorf("%w: empty product name", contractx.ErrNotFound)
	}
	for _, p := range m.products {
		if !contains(vendorIDs, p.VendorID) {
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p, nil
		}
	}
	return contractx.Product{}, fmt.Errorf("%w: product name %s", contractx.ErrNotFound, name)
}

func (m *Memory) ApprovedVendorIDs(_ context.Context, organizationID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.approvals[organizationID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

func (m *Memory) ListApprovedVendors(_ context.Context, organizationID string, limit int) ([]contractx.Vendor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	approved := m.approvals[organizationID]
	out := make([]contractx.Vendor, 0, len(approved))
	for _, v := range m.vendors {
		if contains(approved, v.ID) {
			out = append(out, v)
		}
	}
	return sortAndLimit(out, limit), nil
}

func (m *Memory) ListVendors(_ context.Context, limit int) ([]contractx.Vendor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]contractx.Vendor, len(m.vendors))
	copy(out, m.vendors)
	return sortAndLimit(out, limit), nil
}

func (m *Memory) VendorsByIDs(_ context.Context, ids []string) ([]contractx.Vendor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]contractx.Vendor, 0, len(ids))
	for _, v := range m.vendors {
		if contains(ids, v.ID) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory) FindVendorByName(_ context.Context, name string) (contractx.Vendor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return contractx.Vendor{}, fmt.Errorf("%w: empty vendor name", contractx.ErrNotFound)
	}
	for _, v := range m.vendors {
		if strings.ToLower(strings.TrimSpace(v.Name)) == needle {
			return v, nil
		}
	}
	for _, v := range m.vendors {
		if strings.Contains(strings.ToLower(v.Name), needle) {
			return v, nil
		}
	}
	return contractx.Vendor{}, fmt.Errorf("%w: vendor %s", contractx.ErrNotFound, name)
}

func (m *Memory) FindAgent(_ context.Context, ownerType contractx.AgentOwnerType, ownerID string, kind contractx.AgentKind) (contractx.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.agents {
		if a.OwnerType == ownerType && a.OwnerID == ownerID && a.Kind == kind {
			return a, nil
		}
	}
	return contractx.Agent{}, fmt.Errorf("%w: %s agent for %s %s", contractx.ErrNotFound, kind, ownerType, ownerID)
}

func (m *Memory) LatestDraftOrder(_ context.Context, organizationID, vendorID string, since time.Time) (contractx.DraftOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.orders) - 1; i >= 0; i-- {
		o := m.orders[i]
		if o.OrganizationID != organizationID || o.VendorID != vendorID {
			continue
		}
		if o.Status != contractx.DraftOrderDraft || o.CreatedAt.Before(since) {
			continue
		}
		return cloneOrder(o), nil
	}
	return contractx.DraftOrder{}, fmt.Errorf("%w: recent draft order", contractx.ErrNotFound)
}

func (m *Memory) CreateDraftOrder(_ context.Context, order contractx.DraftOrder) (contractx.DraftOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = contractx.DraftOrderDraft
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = m.now()
	}
	order = cloneOrder(order)
	m.orders = append(m.orders, order)
	return cloneOrder(order), nil
}

func (m *Memory) GetDraftOrder(_ context.Context, id string) (contractx.DraftOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.ID == id {
			return cloneOrder(o), nil
		}
	}
	return contractx.DraftOrder{}, fmt.Errorf("%w: draft order %s", contractx.ErrNotFound, id)
}

// DraftOrders returns every stored draft order in creation order.
func (m *Memory) DraftOrders() []contractx.DraftOrder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]contractx.DraftOrder, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, cloneOrder(o))
	}
	return out
}

func cloneOrder(o contractx.DraftOrder) contractx.DraftOrder {
	o.Items = append([]contractx.OrderItem(nil), o.Items...)
	return o
}

func sortAndLimit(vendors []contractx.Vendor, limit int) []contractx.Vendor {
	sort.SliceStable(vendors, func(i, j int) bool {
		return strings.ToLower(vendors[i].Name) < strings.ToLower(vendors[j].Name)
	})
	if limit > 0 && len(vendors) > limit {
		vendors = vendors[:limit]
	}
	return vendors
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
