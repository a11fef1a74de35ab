package store

import (
	"time"

	"github.com/uptrace/bun"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

type conversationRow struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`

	ID             string    `bun:"id,pk"`
	OrganizationID string    `bun:"organization_id,nullzero"`
	VendorID       string    `bun:"vendor_id,nullzero"`
	Topic          string    `bun:"topic"`
	Status         string    `bun:"status,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

func (r conversationRow) toDomain() contractx.Conversation {
	return contractx.Conversation{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		VendorID:       r.VendorID,
		Topic:          r.Topic,
		Status:         contractx.ConversationStatus(r.Status),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type messageRow struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID             string               `bun:"id,pk"`
	Seq            int64                `bun:"seq,autoincrement"`
	ConversationID string               `bun:"conversation_id,notnull"`
	Role           string               `bun:"role,notnull"`
	SenderType     string               `bun:"sender_type,nullzero"`
	Content        string               `bun:"content"`
	ToolName       string               `bun:"tool_name,nullzero"`
	ToolCallID     string               `bun:"tool_call_id,nullzero"`
	ToolCalls      []contractx.ToolCall `bun:"tool_calls,type:jsonb"`
	CreatedAt      time.Time            `bun:"created_at,notnull"`
}

func (r messageRow) toDomain() contractx.Message {
	return contractx.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Role:           contractx.Role(r.Role),
		SenderType:     contractx.SenderType(r.SenderType),
		Content:        r.Content,
		ToolName:       r.ToolName,
		ToolCallID:     r.ToolCallID,
		ToolCalls:      r.ToolCalls,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type productRow struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID           string  `bun:"id,pk"`
	VendorID     string  `bun:"vendor_id,notnull"`
	SKU          string  `bun:"sku,nullzero"`
	Name         string  `bun:"name"`
	Description  string  `bun:"description"`
	Brand        string  `bun:"brand"`
	Category     string  `bun:"category"`
	Price        float64 `bun:"price,notnull"`
	Currency     string  `bun:"currency"`
	Stock        *int    `bun:"stock"`
	LeadTimeDays *int    `bun:"lead_time_days"`
}

func (r productRow) toDomain() contractx.Product {
	return contractx.Product{
		ID:           r.ID,
		VendorID:     r.VendorID,
		SKU:          r.SKU,
		Name:         r.Name,
		Description:  r.Description,
		Brand:        r.Brand,
		Category:     r.Category,
		Price:        r.Price,
		Currency:     r.Currency,
		Stock:        r.Stock,
		LeadTimeDays: r.LeadTimeDays,
	}
}

type vendorRow struct {
	bun.BaseModel `bun:"table:vendors,alias:v"`

	ID           string `bun:"id,pk"`
	Name         string `bun:"name,notnull"`
	Website      string `bun:"website"`
	ContactEmail string `bun:"contact_email"`
}

func (r vendorRow) toDomain() contractx.Vendor {
	return contractx.Vendor{ID: r.ID, Name: r.Name, Website: r.Website, ContactEmail: r.ContactEmail}
}

type approvalRow struct {
	bun.BaseModel `bun:"table:organization_vendors,alias:ov"`

	OrganizationID string `bun:"organization_id,pk"`
	VendorID       string `bun:"vendor_id,pk"`
	Status         string `bun:"status,notnull,default:'approved'"`
}

// ApprovalApproved is the organization_vendors status that puts a vendor in
// an organization's search scope. Pending or revoked rows are ignored.
const ApprovalApproved = "approved"

type agentRow struct {
	bun.BaseModel `bun:"table:agents,alias:a"`

	ID           string   `bun:"id,pk"`
	OwnerType    string   `bun:"owner_type,notnull"`
	OwnerID      string   `bun:"owner_id,notnull"`
	Kind         string   `bun:"kind,notnull"`
	Model        string   `bun:"model"`
	Temperature  *float32 `bun:"temperature"`
	SystemPrompt string   `bun:"system_prompt"`
}

func (r agentRow) toDomain() contractx.Agent {
	return contractx.Agent{
		ID:           r.ID,
		OwnerType:    contractx.AgentOwnerType(r.OwnerType),
		OwnerID:      r.OwnerID,
		Kind:         contractx.AgentKind(r.Kind),
		Model:        r.Model,
		Temperature:  r.Temperature,
		SystemPrompt: r.SystemPrompt,
	}
}

type draftOrderRow struct {
	bun.BaseModel `bun:"table:draft_orders,alias:o"`

	ID             string                `bun:"id,pk"`
	Seq            int64                 `bun:"seq,autoincrement"`
	OrganizationID string                `bun:"organization_id,notnull"`
	VendorID       string                `bun:"vendor_id,notnull"`
	Status         string                `bun:"status,notnull"`
	Items          []contractx.OrderItem `bun:"items,type:jsonb"`
	TotalAmount    float64               `bun:"total_amount,notnull"`
	Currency       string                `bun:"currency"`
	Notes          string                `bun:"notes"`
	CreatedAt      time.Time             `bun:"created_at,notnull"`
}

func (r draftOrderRow) toDomain() contractx.DraftOrder {
	return contractx.DraftOrder{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		VendorID:       r.VendorID,
		Status:         contractx.DraftOrderStatus(r.Status),
		Items:          r.Items,
		TotalAmount:    r.TotalAmount,
		Currency:       r.Currency,
		Notes:          r.Notes,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func draftOrderRowFrom(o contractx.DraftOrder) *draftOrderRow {
	return &draftOrderRow{
		ID:             o.ID,
		OrganizationID: o.OrganizationID,
		VendorID:       o.VendorID,
		Status:         string(o.Status),
		Items:          o.Items,
		TotalAmount:    o.TotalAmount,
		Currency:       o.Currency,
		Notes:          o.Notes,
		CreatedAt:      o.CreatedAt,
	}
}

var schemaModels = []any{
	(*conversationRow)(nil),
	(*messageRow)(nil),
	(*productRow)(nil),
	(*vendorRow)(nil),
	(*approvalRow)(nil),
	(*agentRow)(nil),
	(*draftOrderRow)(nil),
}
