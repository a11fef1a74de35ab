package mission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	negotiatorx "github.com/tanpawarit/chative-procurement/agent/agents/negotiator"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

// TurnRunner answers one conversation turn.
type TurnRunner interface {
	RespondTurn(ctx context.Context, conversationID string) (negotiatorx.TurnResult, error)
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator fans a sourcing request out to one negotiation per vendor.
type Coordinator struct {
	store  contractx.Store
	turns  TurnRunner
	cfg    Config
	now    func() time.Time
	runner compose.Runnable[contractx.MissionRequest, contractx.MissionResult]
}

func NewCoordinator(ctx context.Context, store contractx.Store, turns TurnRunner, cfg Config, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", contractx.ErrConfiguration)
	}
	if turns == nil {
		return nil, fmt.Errorf("%w: turn runner is required", contractx.ErrConfiguration)
	}
	c := &Coordinator{
		store: store,
		turns: turns,
		cfg:   cfg.withDefaults(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	runner, err := compileMissionGraph(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrConfiguration, err)
	}
	c.runner = runner
	return c, nil
}

func (c *Coordinator) Run(ctx context.Context, req contractx.MissionRequest) (contractx.MissionResult, error) {
	return c.runner.Invoke(ctx, req)
}

func validateRequest(req contractx.MissionRequest) (contractx.MissionRequest, error) {
	if len(req.Items) == 0 {
		return req, fmt.Errorf("%w: items required", contractx.ErrValidation)
	}
	items := make([]contractx.MissionLineItem, 0, len(req.Items))
	for _, it := range req.Items {
		it.SKU = strings.TrimSpace(it.SKU)
		it.Name = strings.TrimSpace(it.Name)
		if it.SKU == "" && it.Name == "" {
			continue
		}
		if it.Quantity <= 0 {
			it.Quantity = 1
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return req, fmt.Errorf("%w: every item needs a sku or a name", contractx.ErrValidation)
	}
	req.Items = items
	req.OrganizationID = strings.TrimSpace(req.OrganizationID)
	if req.Urgency == "" {
		req.Urgency = contractx.UrgencyNotUrgent
	}
	return req, nil
}

type groupOutcome struct {
	index int
	offer contractx.Offer
	err   error
}

// fanOut negotiates every vendor group on a bounded pool. A failed group
// keeps its base offer without an agent response.
func (c *Coordinator) fanOut(ctx context.Context, req contractx.MissionRequest, groups []VendorGroup) []contractx.Offer {
	p := pool.NewWithResults[groupOutcome]().WithMaxGoroutines(c.cfg.Workers)
	for i, g := range groups {
		i, g := i, g
		p.Go(func() groupOutcome {
			return c.negotiate(ctx, i, req, g)
		})
	}
	outcomes := p.Wait()
	sort.Slice(outcomes, func(a, b int) bool { return outcomes[a].index < outcomes[b].index })

	offers := make([]contractx.Offer, 0, len(outcomes))
	for _, o := range outcomes {
		if o.err != nil {
			log.Warn().
				Err(o.err).
				Str("vendor_id", o.offer.VendorID).
				Str("conversation_id", o.offer.ConversationID).
				Msg("vendor negotiation degraded to base offer")
		}
		offers = append(offers, o.offer)
	}
	return offers
}

func (c *Coordinator) negotiate(ctx context.Context, index int, req contractx.MissionRequest, g VendorGroup) groupOutcome {
	out := groupOutcome{
		index: index,
		offer: contractx.Offer{
			VendorID:    g.VendorID,
			Items:       g.Lines,
			TotalAmount: BaseTotal(g.Lines),
		},
	}
	if req.OrganizationID == "" {
		return out
	}

	conv, err := c.conversationFor(ctx, req.OrganizationID, g.VendorID)
	if err != nil {
		out.err = err
		return out
	}
	out.offer.ConversationID = conv.ID

	if _, err := c.store.AppendMessage(ctx, contractx.Message{
		ConversationID: conv.ID,
		Role:           contractx.RoleUser,
		SenderType:     contractx.SenderUser,
		Content:        RFQText(g.Lines, req.Shipping, req.Urgency),
	}); err != nil {
		out.err = fmt.Errorf("append rfq: %w", err)
		return out
	}

	res, err := c.turns.RespondTurn(ctx, conv.ID)
	if err != nil {
		out.err = err
		return out
	}
	out.offer.AgentResponse = res.Reply
	return out
}

// conversationFor reuses the latest conversation with the vendor or opens one.
func (c *Coordinator) conversationFor(ctx context.Context, organizationID, vendorID string) (contractx.Conversation, error) {
	conv, err := c.store.LatestConversation(ctx, organizationID, vendorID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, contractx.ErrNotFound) {
		return contractx.Conversation{}, fmt.Errorf("latest conversation: %w", err)
	}
	conv, err = c.store.CreateConversation(ctx, contractx.Conversation{
		OrganizationID: organizationID,
		VendorID:       vendorID,
		Topic:          "RFQ " + c.now().Format(time.RFC3339),
		Status:         contractx.ConversationOpen,
	})
	if err != nil {
		return contractx.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// RFQText renders the quotation request posted to a vendor conversation.
func RFQText(lines []contractx.OfferLine, shipping contractx.Shipping, urgency contractx.Urgency) string {
	var b strings.Builder
	b.WriteString("Please provide a quotation for these items:\n")
	for _, l := range lines {
		label := l.Name
		if label == "" {
			label = l.SKU
		}
		if label == "" {
			label = l.ProductID
		}
		fmt.Fprintf(&b, "- %s: qty %d\n", label, l.Quantity)
	}
	address := strings.TrimSpace(shipping.Address)
	if address == "" {
		address = "N/A"
	}
	if urgency == "" {
		urgency = contractx.UrgencyNotUrgent
	}
	fmt.Fprintf(&b, "Shipping address: %s\nUrgency: %s.", address, urgency)
	return b.String()
}

func (c *Coordinator) vendorNames(ctx context.Context, offers []contractx.Offer) map[string]string {
	ids := make([]string, 0, len(offers))
	for _, o := range offers {
		ids = append(ids, o.VendorID)
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names
	}
	vendors, err := c.store.VendorsByIDs(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("vendor name lookup failed")
		return names
	}
	for _, v := range vendors {
		names[v.ID] = v.Name
	}
	return names
}
