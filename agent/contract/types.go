package contract

import (
	"time"
)

type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
)

type Conversation struct {
	ID             string             `json:"id"`
	OrganizationID string             `json:"organization_id,omitempty"`
	VendorID       string             `json:"vendor_id,omitempty"`
	Topic          string             `json:"topic,omitempty"`
	Status         ConversationStatus `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// VendorScoped reports whether catalog and vendor visibility is limited to a single vendor.
func (c Conversation) VendorScoped() bool {
	return c.VendorID != ""
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type SenderType string

const (
	SenderUser            SenderType = "user"
	SenderBuyerAgent      SenderType = "buyer_agent"
	SenderNegotiatorAgent SenderType = "negotiator_agent"
)

type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Role           Role       `json:"role"`
	SenderType     SenderType `json:"sender_type,omitempty"`
	Content        string     `json:"content"`
	ToolName       string     `json:"tool_name,omitempty"`
	ToolCallID     string     `json:"tool_call_id,omitempty"`
	ToolCalls      []ToolCall `json:"tool_calls,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type Product struct {
	ID           string  `json:"id"`
	VendorID     string  `json:"vendor_id"`
	SKU          string  `json:"sku,omitempty"`
	Name         string  `json:"name,omitempty"`
	Description  string  `json:"description,omitempty"`
	Brand        string  `json:"brand,omitempty"`
	Category     string  `json:"category,omitempty"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency,omitempty"`
	Stock        *int    `json:"stock,omitempty"`
	LeadTimeDays *int    `json:"lead_time_days,omitempty"`
}

// ProductQuery narrows a catalog search. A nil VendorIDs slice means no vendor
// restriction; an empty non-nil slice matches nothing.
type ProductQuery struct {
	VendorIDs []string
	Term      string
	Limit     int
}

type Vendor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Website      string `json:"website,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

type AgentOwnerType string

const (
	OwnerOrganization AgentOwnerType = "organization"
	OwnerVendor       AgentOwnerType = "vendor"
)

type AgentKind string

const (
	AgentKindBuyer      AgentKind = "buyer"
	AgentKindNegotiator AgentKind = "negotiator"
)

// Agent is the persona a conversation turn runs under.
type Agent struct {
	ID           string         `json:"id"`
	OwnerType    AgentOwnerType `json:"owner_type"`
	OwnerID      string         `json:"owner_id"`
	Kind         AgentKind      `json:"kind"`
	Model        string         `json:"model,omitempty"`
	Temperature  *float32       `json:"temperature,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
}

func (a Agent) SenderType() SenderType {
	if a.OwnerType == OwnerVendor {
		return SenderNegotiatorAgent
	}
	return SenderBuyerAgent
}

type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type DraftOrderStatus string

const (
	DraftOrderDraft     DraftOrderStatus = "draft"
	DraftOrderSubmitted DraftOrderStatus = "submitted"
	DraftOrderCancelled DraftOrderStatus = "cancelled"
)

type DraftOrder struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	VendorID       string           `json:"vendor_id"`
	Status         DraftOrderStatus `json:"status"`
	Items          []OrderItem      `json:"items"`
	TotalAmount    float64          `json:"total_amount"`
	Currency       string           `json:"currency"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

type Urgency string

const (
	UrgencyNotUrgent Urgency = "not_urgent"
	UrgencyUrgent    Urgency = "urgent"
)

type Shipping struct {
	Address string `json:"address,omitempty"`
}

type MissionLineItem struct {
	SKU      string `json:"sku,omitempty"`
	Name     string `json:"name,omitempty"`
	Quantity int    `json:"quantity"`
}

type MissionRequest struct {
	OrganizationID string            `json:"organization_id,omitempty"`
	Items          []MissionLineItem `json:"items"`
	Shipping       Shipping          `json:"shipping"`
	Urgency        Urgency           `json:"urgency,omitempty"`
}

type OfferLine struct {
	ProductID    string  `json:"product_id"`
	SKU          string  `json:"sku,omitempty"`
	Name         string  `json:"name,omitempty"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	Stock        *int    `json:"stock,omitempty"`
	LeadTimeDays *int    `json:"lead_time_days,omitempty"`
}

type Offer struct {
	VendorID       string      `json:"vendor_id"`
	VendorName     string      `json:"vendor_name"`
	TotalAmount    float64     `json:"total_amount"`
	Items          []OfferLine `json:"items"`
	ConversationID string      `json:"conversation_id,omitempty"`
	AgentResponse  string      `json:"agent_response,omitempty"`
}

type MissionResult struct {
	Offers            []Offer `json:"offers"`
	RecommendedVendor string  `json:"recommended_vendor,omitempty"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
