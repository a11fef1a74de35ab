package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

// Postgres implements contractx.Store on top of bun.
type Postgres struct {
	db  bun.IDB
	now func() time.Time
}

var _ contractx.Store = (*Postgres)(nil)

func NewPostgres(db bun.IDB) (*Postgres, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: bun db is required", contractx.ErrConfiguration)
	}
	return &Postgres{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Migrate creates the tables the store reads from when they do not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	for _, model := range schemaModels {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", contractx.ErrNotFound, what)
	}
	return fmt.Errorf("select %s: %w", what, err)
}

func (s *Postgres) GetConversation(ctx context.Context, id string) (contractx.Conversation, error) {
	var row conversationRow
	if err := s.db.NewSelect().Model(&row).Where("c.id = ?", id).Scan(ctx); err != nil {
		return contractx.Conversation{}, notFound(err, "conversation "+id)
	}
	return row.toDomain(), nil
}

func (s *Postgres) CreateConversation(ctx context.Context, conv contractx.Conversation) (contractx.Conversation, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Status == "" {
		conv.Status = contractx.ConversationOpen
	}
	now := s.now()
	row := &conversationRow{
		ID:             conv.ID,
		OrganizationID: conv.OrganizationID,
		VendorID:       conv.VendorID,
		Topic:          conv.Topic,
		Status:         string(conv.Status),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return contractx.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Postgres) LatestConversation(ctx context.Context, organizationID, vendorID string) (contractx.Conversation, error) {
	var row conversationRow
	err := s.db.NewSelect().
		Model(&row).
		Where("c.organization_id = ?", organizationID).
		Where("c.vendor_id = ?", vendorID).
		OrderExpr("c.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return contractx.Conversation{}, notFound(err, "latest conversation")
	}
	return row.toDomain(), nil
}

func (s *Postgres) AppendMessage(ctx context.Context, msg contractx.Message) (contractx.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = s.now()
	row := &messageRow{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           string(msg.Role),
		SenderType:     string(msg.SenderType),
		Content:        msg.Content,
		ToolName:       msg.ToolName,
		ToolCallID:     msg.ToolCallID,
		ToolCalls:      msg.ToolCalls,
		CreatedAt:      msg.CreatedAt,
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		res, err := tx.NewUpdate().
			Model((*conversationRow)(nil)).
			Set("updated_at = ?", msg.CreatedAt).
			Where("id = ?", msg.ConversationID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: conversation %s", contractx.ErrNotFound, msg.ConversationID)
		}
		return nil
	})
	if err != nil {
		return contractx.Message{}, err
	}
	return msg, nil
}

func (s *Postgres) ListMessages(ctx context.Context, conversationID string, limit int) ([]contractx.Message, error) {
	var rows []messageRow
	if err := listMessagesQuery(s.db, &rows, conversationID, limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	out := make([]contractx.Message, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = row.toDomain()
	}
	return out, nil
}

func (s *Postgres) SearchProducts(ctx context.Context, q contractx.ProductQuery) ([]contractx.Product, error) {
	if q.VendorIDs != nil && len(q.VendorIDs) == 0 {
		return []contractx.Product{}, nil
	}
	var rows []productRow
	sel := s.db.NewSelect().Model(&rows).OrderExpr("p.name ASC")
	if q.VendorIDs != nil {
		sel = sel.Where("p.vendor_id IN (?)", bun.In(q.VendorIDs))
	}
	if term := strings.TrimSpace(q.Term); term != "" {
		pattern := "%" + term + "%"
		sel = sel.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("p.name ILIKE ?", pattern).
				WhereOr("p.sku ILIKE ?", pattern).
				WhereOr("p.description ILIKE ?", pattern).
				WhereOr("p.brand ILIKE ?", pattern).
				WhereOr("p.category ILIKE ?", pattern)
		})
	}
	if q.Limit > 0 {
		sel = sel.Limit(q.Limit)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return productsToDomain(rows), nil
}

func (s *Postgres) GetProduct(ctx context.Context, id string) (contractx.Product, error) {
	var row productRow
	if err := s.db.NewSelect().Model(&row).Where("p.id = ?", id).Scan(ctx); err != nil {
		return contractx.Product{}, notFound(err, "product "+id)
	}
	return row.toDomain(), nil
}

func (s *Postgres) ProductsByIDs(ctx context.Context, ids []string) ([]contractx.Product, error) {
	if len(ids) == 0 {
		return []contractx.Product{}, nil
	}
	var rows []productRow
	if err := s.db.NewSelect().Model(&rows).Where("p.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select products by id: %w", err)
	}
	return productsToDomain(rows), nil
}

func (s *Postgres) ProductsBySKUs(ctx context.Context, skus []string) ([]contractx.Product, error) {
	if len(skus) == 0 {
		return []contractx.Product{}, nil
	}
	var rows []productRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("p.sku IN (?)", bun.In(skus)).
		OrderExpr("p.vendor_id ASC, p.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select products by sku: %w", err)
	}
	return productsToDomain(rows), nil
}

func (s *Postgres) FindProductBySKU(ctx context.Context, sku, vendorID string) (contractx.Product, error) {
	var row productRow
	q := s.db.NewSelect().Model(&row).Where("lower(p.sku) = lower(?)", sku)
	if vendorID != "" {
		q = q.Where("p.vendor_id = ?", vendorID)
	}
	if err := q.OrderExpr("p.id ASC").Limit(1).Scan(ctx); err != nil {
		return contractx.Product{}, notFound(err, "product sku "+sku)
	}
	return row.toDomain(), nil
}

func (s *Postgres) FindProductByName(ctx context.Context, name string, vendorIDs []string) (contractx.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(vendorIDs) == 0 {
		return contractx.Product{}, fmt.Errorf("%w: product name %s", contractx.ErrNotFound, name)
	}
	var row productRow
	err := s.db.NewSelect().
		Model(&row).
		Where("p.vendor_id IN (?)", bun.In(vendorIDs)).
		Where("p.name ILIKE ?", "%"+name+"%").
		OrderExpr("p.name ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return contractx.Product{}, notFound(err, "product name "+name)
	}
	return row.toDomain(), nil
}

func (s *Postgres) ApprovedVendorIDs(ctx context.Context, organizationID string) ([]string, error) {
	var rows []approvalRow
	if err := approvedVendorsQuery(s.db, &rows, organizationID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select approved vendors: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.VendorID)
	}
	return ids, nil
}

func (s *Postgres) ListApprovedVendors(ctx context.Context, organizationID string, limit int) ([]contractx.Vendor, error) {
	var rows []vendorRow
	if err := listApprovedVendorsQuery(s.db, &rows, organizationID, limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("list approved vendors: %w", err)
	}
	return vendorsToDomain(rows), nil
}

func (s *Postgres) ListVendors(ctx context.Context, limit int) ([]contractx.Vendor, error) {
	var rows []vendorRow
	q := s.db.NewSelect().Model(&rows).OrderExpr("v.name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	return vendorsToDomain(rows), nil
}

func (s *Postgres) VendorsByIDs(ctx context.Context, ids []string) ([]contractx.Vendor, error) {
	if len(ids) == 0 {
		return []contractx.Vendor{}, nil
	}
	var rows []vendorRow
	if err := s.db.NewSelect().Model(&rows).Where("v.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select vendors by id: %w", err)
	}
	return vendorsToDomain(rows), nil
}

func (s *Postgres) FindVendorByName(ctx context.Context, name string) (contractx.Vendor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return contractx.Vendor{}, fmt.Errorf("%w: empty vendor name", contractx.ErrNotFound)
	}
	var row vendorRow
	err := s.db.NewSelect().
		Model(&row).
		Where("v.name ILIKE ?", "%"+name+"%").
		OrderExpr("(lower(v.name) = lower(?)) DESC, v.name ASC", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return contractx.Vendor{}, notFound(err, "vendor "+name)
	}
	return row.toDomain(), nil
}

func (s *Postgres) FindAgent(ctx context.Context, ownerType contractx.AgentOwnerType, ownerID string, kind contractx.AgentKind) (contractx.Agent, error) {
	var row agentRow
	err := s.db.NewSelect().
		Model(&row).
		Where("a.owner_type = ?", string(ownerType)).
		Where("a.owner_id = ?", ownerID).
		Where("a.kind = ?", string(kind)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return contractx.Agent{}, notFound(err, fmt.Sprintf("%s agent for %s %s", kind, ownerType, ownerID))
	}
	return row.toDomain(), nil
}

func (s *Postgres) LatestDraftOrder(ctx context.Context, organizationID, vendorID string, since time.Time) (contractx.DraftOrder, error) {
	var row draftOrderRow
	if err := latestDraftOrderQuery(s.db, &row, organizationID, vendorID, since).Scan(ctx); err != nil {
		return contractx.DraftOrder{}, notFound(err, "recent draft order")
	}
	return row.toDomain(), nil
}

func (s *Postgres) CreateDraftOrder(ctx context.Context, order contractx.DraftOrder) (contractx.DraftOrder, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = contractx.DraftOrderDraft
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}
	row := draftOrderRowFrom(order)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return contractx.DraftOrder{}, fmt.Errorf("insert draft order: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Postgres) GetDraftOrder(ctx context.Context, id string) (contractx.DraftOrder, error) {
	var row draftOrderRow
	if err := s.db.NewSelect().Model(&row).Where("o.id = ?", id).Scan(ctx); err != nil {
		return contractx.DraftOrder{}, notFound(err, "draft order "+id)
	}
	return row.toDomain(), nil
}

func productsToDomain(rows []productRow) []contractx.Product {
	out := make([]contractx.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}

func vendorsToDomain(rows []vendorRow) []contractx.Vendor {
	out := make([]contractx.Vendor, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}

// latestDraftOrderQuery selects the newest draft-status order of the pair
// inside the window.
func latestDraftOrderQuery(db bun.IDB, row *draftOrderRow, organizationID, vendorID string, since time.Time) *bun.SelectQuery {
	return db.NewSelect().
		Model(row).
		Where("o.organization_id = ?", organizationID).
		Where("o.vendor_id = ?", vendorID).
		Where("o.status = ?", string(contractx.DraftOrderDraft)).
		Where("o.created_at >= ?", since).
		OrderExpr("o.created_at DESC, o.seq DESC").
		Limit(1)
}

// listMessagesQuery selects the newest messages first; seq breaks ties
// between messages sharing a timestamp.
func listMessagesQuery(db bun.IDB, rows *[]messageRow, conversationID string, limit int) *bun.SelectQuery {
	q := db.NewSelect().
		Model(rows).
		Where("m.conversation_id = ?", conversationID).
		OrderExpr("m.created_at DESC, m.seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func approvedVendorsQuery(db bun.IDB, rows *[]approvalRow, organizationID string) *bun.SelectQuery {
	return db.NewSelect().
		Model(rows).
		Where("ov.organization_id = ?", organizationID).
		Where("ov.status = ?", ApprovalApproved)
}

func listApprovedVendorsQuery(db bun.IDB, rows *[]vendorRow, organizationID string, limit int) *bun.SelectQuery {
	q := db.NewSelect().
		Model(rows).
		Join("JOIN organization_vendors AS ov ON ov.vendor_id = v.id").
		Where("ov.organization_id = ?", organizationID).
		Where("ov.status = ?", ApprovalApproved).
		OrderExpr("v.name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}
