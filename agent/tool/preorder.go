package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

type preOrderArgs struct {
	VendorID   string
	VendorName string
	Items      []contractx.OrderItem
	Notes      string
}

func (c *Capabilities) createPreOrder(ctx context.Context, conv contractx.Conversation, args map[string]any) (contractx.ToolResult, error) {
	in, err := parsePreOrderArgs(args)
	if err != nil {
		return contractx.ToolResult{Tool: ToolCreatePreOrder, Error: err.Error()}, nil
	}
	if conv.OrganizationID == "" {
		return contractx.ToolResult{
			Tool:  ToolCreatePreOrder,
			Error: "conversation has no organization to order for",
		}, nil
	}

	vendorID, err := c.resolveVendor(ctx, conv, in)
	if err != nil {
		if errors.Is(err, contractx.ErrNotFound) || errors.Is(err, contractx.ErrValidation) {
			return contractx.ToolResult{Tool: ToolCreatePreOrder, Error: err.Error()}, nil
		}
		return contractx.ToolResult{}, err
	}

	approved, err := c.vendors.ApprovedVendorIDs(ctx, conv.OrganizationID)
	if err != nil {
		return contractx.ToolResult{}, fmt.Errorf("approved vendors: %w", err)
	}

	r := resolver{
		catalog:      c.catalog,
		vendorID:     vendorID,
		vendorLocked: conv.VendorScoped(),
		approved:     approved,
	}

	items := make([]contractx.OrderItem, 0, len(in.Items))
	var total float64
	for _, item := range in.Items {
		p, err := r.resolve(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, contractx.ErrProductNotFound) {
				return contractx.ToolResult{Tool: ToolCreatePreOrder, Error: err.Error()}, nil
			}
			return contractx.ToolResult{}, err
		}
		if r.vendorID == "" {
			r.vendorID = p.VendorID
		}
		if p.VendorID != r.vendorID {
			return contractx.ToolResult{
				Tool:  ToolCreatePreOrder,
				Error: fmt.Sprintf("product %s belongs to a different vendor than the pre-order", item.ProductID),
			}, nil
		}
		items = append(items, contractx.OrderItem{ProductID: p.ID, Quantity: item.Quantity})
		total += p.Price * float64(item.Quantity)
	}

	order, err := c.guard.ReuseOrCreate(ctx, contractx.DraftOrder{
		OrganizationID: conv.OrganizationID,
		VendorID:       r.vendorID,
		Status:         contractx.DraftOrderDraft,
		Items:          items,
		TotalAmount:    roundCents(total),
		Currency:       c.currency,
		Notes:          strings.TrimSpace(in.Notes),
	})
	if err != nil {
		return contractx.ToolResult{}, fmt.Errorf("create draft order: %w", err)
	}

	return contractx.ToolResult{
		Tool:   ToolCreatePreOrder,
		Result: CreatePreOrderOutput{PreOrder: order},
	}, nil
}

// resolveVendor pins vendor-scoped conversations to their vendor. Otherwise a
// vendor_id that is not a UUID is treated as a vendor name.
func (c *Capabilities) resolveVendor(ctx context.Context, conv contractx.Conversation, in preOrderArgs) (string, error) {
	if conv.VendorScoped() {
		if in.VendorID != "" && isUUID(in.VendorID) && in.VendorID != conv.VendorID {
			return "", fmt.Errorf("%w: pre-orders in this conversation must target its vendor", contractx.ErrValidation)
		}
		return conv.VendorID, nil
	}

	vendorID := strings.TrimSpace(in.VendorID)
	name := strings.TrimSpace(in.VendorName)
	if vendorID != "" && !isUUID(vendorID) {
		if name == "" {
			name = vendorID
		}
		vendorID = ""
	}
	if vendorID != "" {
		return vendorID, nil
	}
	if name == "" {
		return "", nil
	}

	v, err := c.vendors.FindVendorByName(ctx, name)
	if err != nil {
		if errors.Is(err, contractx.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("find vendor by name: %w", err)
	}
	return v.ID, nil
}

// resolver maps a free-form product identifier to a catalog product:
// identifier, then SKU, then fuzzy name.
type resolver struct {
	catalog      contractx.CatalogStore
	vendorID     string
	vendorLocked bool
	approved     []string
}

func (r *resolver) resolve(ctx context.Context, ref string) (contractx.Product, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return contractx.Product{}, fmt.Errorf("%w: empty identifier", contractx.ErrProductNotFound)
	}

	if isUUID(ref) {
		p, err := r.catalog.GetProduct(ctx, ref)
		switch {
		case err == nil && (r.vendorID == "" || p.VendorID == r.vendorID):
			return p, nil
		case err != nil && !errors.Is(err, contractx.ErrNotFound):
			return contractx.Product{}, fmt.Errorf("get product: %w", err)
		}
	}

	if r.vendorID != "" {
		if p, ok, err := r.found(r.catalog.FindProductBySKU(ctx, ref, r.vendorID)); err != nil || ok {
			return p, err
		}
	}
	if !r.vendorLocked && r.vendorID == "" {
		if p, ok, err := r.found(r.catalog.FindProductBySKU(ctx, ref, "")); err != nil || ok {
			return p, err
		}
	}

	if r.vendorID != "" {
		if p, ok, err := r.found(r.catalog.FindProductByName(ctx, ref, []string{r.vendorID})); err != nil || ok {
			return p, err
		}
	}
	if !r.vendorLocked && len(r.approved) > 0 {
		if p, ok, err := r.found(r.catalog.FindProductByName(ctx, ref, r.approved)); err != nil || ok {
			return p, err
		}
	}

	return contractx.Product{}, fmt.Errorf("%w for identifier: %s", contractx.ErrProductNotFound, ref)
}

func (r *resolver) found(p contractx.Product, err error) (contractx.Product, bool, error) {
	if err == nil {
		return p, true, nil
	}
	if errors.Is(err, contractx.ErrNotFound) {
		return contractx.Product{}, false, nil
	}
	return contractx.Product{}, false, fmt.Errorf("resolve product: %w", err)
}

func parsePreOrderArgs(args map[string]any) (preOrderArgs, error) {
	out := preOrderArgs{
		VendorID:   strings.TrimSpace(argString(args, "vendor_id")),
		VendorName: strings.TrimSpace(argString(args, "vendor_name")),
		Notes:      argString(args, "notes"),
	}

	rawItems, ok := args["items"].([]any)
	if !ok || len(rawItems) == 0 {
		return preOrderArgs{}, errors.New("items required")
	}
	for i, raw := range rawItems {
		m, ok := raw.(map[string]any)
		if !ok {
			return preOrderArgs{}, fmt.Errorf("items[%d] must be an object", i)
		}
		pid := strings.TrimSpace(argString(m, "product_id"))
		if pid == "" {
			return preOrderArgs{}, fmt.Errorf("items[%d].product_id is required", i)
		}
		out.Items = append(out.Items, contractx.OrderItem{
			ProductID: pid,
			Quantity:  argInt(m, "quantity", 1),
		})
	}
	return out, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
