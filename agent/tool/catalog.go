package tool

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	defaultVendorLimit = 20
	defaultCurrency    = "USD"
)

// Executor runs one tool call for a conversation bound at construction time.
type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

// DraftGuard creates draft orders without duplicating a recent identical one.
type DraftGuard interface {
	ReuseOrCreate(ctx context.Context, order contractx.DraftOrder) (contractx.DraftOrder, error)
}

type SearchProductsOutput struct {
	Products []contractx.Product `json:"products"`
}

type ListVendorsOutput struct {
	Vendors []contractx.Vendor `json:"vendors"`
}

type CreatePreOrderOutput struct {
	PreOrder contractx.DraftOrder `json:"pre_order"`
}

// Capabilities holds the collaborators behind the three procurement tools.
type Capabilities struct {
	searcher contractx.ProductSearcher
	catalog  contractx.CatalogStore
	vendors  contractx.VendorStore
	guard    DraftGuard
	currency string
}

type Option func(*Capabilities)

// WithSearcher swaps the search capability used by search_products.
func WithSearcher(s contractx.ProductSearcher) Option {
	return func(c *Capabilities) {
		if s != nil {
			c.searcher = s
		}
	}
}

func WithCurrency(currency string) Option {
	return func(c *Capabilities) {
		if trimmed := strings.TrimSpace(currency); trimmed != "" {
			c.currency = strings.ToUpper(trimmed)
		}
	}
}

func NewCapabilities(
	catalog contractx.CatalogStore,
	vendors contractx.VendorStore,
	guard DraftGuard,
	opts ...Option,
) (*Capabilities, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog store is required", contractx.ErrConfiguration)
	}
	if vendors == nil {
		return nil, fmt.Errorf("%w: vendor store is required", contractx.ErrConfiguration)
	}
	if guard == nil {
		return nil, fmt.Errorf("%w: draft order guard is required", contractx.ErrConfiguration)
	}
	c := &Capabilities{
		searcher: catalog,
		catalog:  catalog,
		vendors:  vendors,
		guard:    guard,
		currency: defaultCurrency,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// BuildForConversation returns the declarations offered to the model and an
// executor bound to the conversation scope.
func (c *Capabilities) BuildForConversation(conv contractx.Conversation) ([]*schema.ToolInfo, Executor) {
	return Declarations(conv.VendorScoped()), c.NewExecutor(conv)
}

func (c *Capabilities) NewExecutor(conv contractx.Conversation) Executor {
	return func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
		if !Allowed(tool, conv.VendorScoped()) {
			return contractx.ToolResult{
				Tool:  tool,
				Error: fmt.Sprintf("tool=%s is unavailable for this conversation", tool),
			}, nil
		}

		log.Debug().
			Str("conversation_id", conv.ID).
			Str("tool", tool).
			Msg("executing tool")

		switch tool {
		case ToolSearchProducts:
			return c.searchProducts(ctx, conv, args)
		case ToolListVendors:
			return c.listVendors(ctx, conv, args)
		case ToolCreatePreOrder:
			return c.createPreOrder(ctx, conv, args)
		default:
			return contractx.ToolResult{Tool: tool, Error: fmt.Sprintf("unknown tool %s", tool)}, nil
		}
	}
}

func (c *Capabilities) searchProducts(ctx context.Context, conv contractx.Conversation, args map[string]any) (contractx.ToolResult, error) {
	scope, err := c.vendorScope(ctx, conv)
	if err != nil {
		return contractx.ToolResult{}, err
	}

	limit := argInt(args, "limit", defaultSearchLimit)
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	products, err := c.searcher.SearchProducts(ctx, contractx.ProductQuery{
		VendorIDs: scope,
		Term:      strings.TrimSpace(argString(args, "query")),
		Limit:     limit,
	})
	if err != nil {
		return contractx.ToolResult{}, fmt.Errorf("search products: %w", err)
	}

	// The searcher is substitutable, so the scope is enforced again here.
	allowed := make(map[string]struct{}, len(scope))
	for _, id := range scope {
		allowed[id] = struct{}{}
	}
	visible := make([]contractx.Product, 0, len(products))
	for _, p := range products {
		if _, ok := allowed[p.VendorID]; !ok {
			continue
		}
		visible = append(visible, p)
		if len(visible) == limit {
			break
		}
	}

	return contractx.ToolResult{
		Tool:   ToolSearchProducts,
		Result: SearchProductsOutput{Products: visible},
	}, nil
}

// vendorScope lists the vendors whose catalog is visible to the conversation.
func (c *Capabilities) vendorScope(ctx context.Context, conv contractx.Conversation) ([]string, error) {
	if conv.VendorScoped() {
		return []string{conv.VendorID}, nil
	}
	if conv.OrganizationID == "" {
		return nil, contractx.ErrMissingContext
	}
	ids, err := c.vendors.ApprovedVendorIDs(ctx, conv.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("approved vendors: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (c *Capabilities) listVendors(ctx context.Context, conv contractx.Conversation, args map[string]any) (contractx.ToolResult, error) {
	limit := argInt(args, "limit", defaultVendorLimit)

	var (
		vendors []contractx.Vendor
		err     error
	)
	if conv.OrganizationID != "" {
		vendors, err = c.vendors.ListApprovedVendors(ctx, conv.OrganizationID, limit)
	} else {
		vendors, err = c.vendors.ListVendors(ctx, limit)
	}
	if err != nil {
		return contractx.ToolResult{}, fmt.Errorf("list vendors: %w", err)
	}
	if vendors == nil {
		vendors = []contractx.Vendor{}
	}

	return contractx.ToolResult{
		Tool:   ToolListVendors,
		Result: ListVendorsOutput{Vendors: vendors},
	}, nil
}

func argString(args map[string]any, key string) string {
	raw, ok := args[key]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// argInt reads a positive integer argument, falling back to def.
func argInt(args map[string]any, key string, def int) int {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def
	}
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def
		}
		n = parsed
	default:
		return def
	}
	if n < 1 || math.IsNaN(n) || math.IsInf(n, 0) {
		return def
	}
	return int(n)
}
