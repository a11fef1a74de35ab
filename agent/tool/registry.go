package tool

import (
	"github.com/cloudwego/eino/schema"
)

const (
	ToolSearchProducts = "search_products"
	ToolListVendors    = "list_vendors"
	ToolCreatePreOrder = "create_pre_order"
)

// Declarations returns the tools offered to the model. Vendor-scoped
// conversations never see list_vendors.
func Declarations(vendorScoped bool) []*schema.ToolInfo {
	infos := []*schema.ToolInfo{searchProductsInfo()}
	if !vendorScoped {
		infos = append(infos, listVendorsInfo())
	}
	return append(infos, createPreOrderInfo())
}

// Allowed reports whether a tool may be executed for the given scope.
func Allowed(name string, vendorScoped bool) bool {
	switch name {
	case ToolSearchProducts, ToolCreatePreOrder:
		return true
	case ToolListVendors:
		return !vendorScoped
	default:
		return false
	}
}

func searchProductsInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolSearchProducts,
		Desc: "Search products. In vendor-scoped chats, only search that vendor. In org-only chats, search approved vendors.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "SKU, name, brand or category; empty for a catalog snapshot"},
			"limit": {Type: schema.Number, Desc: "Maximum number of products, default 10"},
		}),
	}
}

func listVendorsInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolListVendors,
		Desc: "List approved vendors for the conversation organization",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"limit": {Type: schema.Number, Desc: "Maximum number of vendors, default 20"},
		}),
	}
}

func createPreOrderInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolCreatePreOrder,
		Desc: "Create a draft pre-order for a vendor with product items",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"vendor_id":   {Type: schema.String, Desc: "Vendor identifier"},
			"vendor_name": {Type: schema.String, Desc: "Vendor name when the identifier is unknown"},
			"items": {
				Type:     schema.Array,
				Desc:     "Line items to order",
				Required: true,
				ElemInfo: &schema.ParameterInfo{
					Type: schema.Object,
					SubParams: map[string]*schema.ParameterInfo{
						"product_id": {Type: schema.String, Desc: "Product id, SKU or name", Required: true},
						"quantity":   {Type: schema.Number, Desc: "Units to order", Required: true},
					},
				},
			},
			"notes": {Type: schema.String, Desc: "Free-text notes for the vendor"},
		}),
	}
}
