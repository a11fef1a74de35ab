package contract

import (
	"context"
	"time"
)

type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (Conversation, error)
	CreateConversation(ctx context.Context, conv Conversation) (Conversation, error)
	// LatestConversation returns the most recently updated conversation between
	// an organization and a vendor, or ErrNotFound.
	LatestConversation(ctx context.Context, organizationID, vendorID string) (Conversation, error)
}

type MessageStore interface {
	// AppendMessage persists msg and bumps the conversation's last activity.
	AppendMessage(ctx context.Context, msg Message) (Message, error)
	// ListMessages returns up to limit of the newest messages in ascending creation order.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

// ProductSearcher is the opaque search capability behind search_products.
type ProductSearcher interface {
	SearchProducts(ctx context.Context, q ProductQuery) ([]Product, error)
}

type CatalogStore interface {
	ProductSearcher
	GetProduct(ctx context.Context, id string) (Product, error)
	ProductsByIDs(ctx context.Context, ids []string) ([]Product, error)
	ProductsBySKUs(ctx context.Context, skus []string) ([]Product, error)
	// FindProductBySKU matches an exact SKU; an empty vendorID searches every vendor.
	FindProductBySKU(ctx context.Context, sku, vendorID string) (Product, error)
	// FindProductByName matches a case-insensitive name substring within vendorIDs.
	FindProductByName(ctx context.Context, name string, vendorIDs []string) (Product, error)
}

type VendorStore interface {
	ApprovedVendorIDs(ctx context.Context, organizationID string) ([]string, error)
	ListApprovedVendors(ctx context.Context, organizationID string, limit int) ([]Vendor, error)
	ListVendors(ctx context.Context, limit int) ([]Vendor, error)
	VendorsByIDs(ctx context.Context, ids []string) ([]Vendor, error)
	FindVendorByName(ctx context.Context, name string) (Vendor, error)
}

type AgentStore interface {
	FindAgent(ctx context.Context, ownerType AgentOwnerType, ownerID string, kind AgentKind) (Agent, error)
}

type DraftOrderStore interface {
	// LatestDraftOrder returns the newest order still in draft status for the
	// pair created at or after since, or ErrNotFound. Orders in any other
	// status are ignored.
	LatestDraftOrder(ctx context.Context, organizationID, vendorID string, since time.Time) (DraftOrder, error)
	CreateDraftOrder(ctx context.Context, order DraftOrder) (DraftOrder, error)
	GetDraftOrder(ctx context.Context, id string) (DraftOrder, error)
}

// Store is the full data store collaborator.
type Store interface {
	ConversationStore
	MessageStore
	CatalogStore
	VendorStore
	AgentStore
	DraftOrderStore
}

// IntentClassifier decides whether a user message must be answered from the catalog.
type IntentClassifier interface {
	ShouldForceSearch(text string) bool
}
