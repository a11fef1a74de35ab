package negotiator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
	llmx "github.com/tanpawarit/chative-procurement/agent/llm"
	toolx "github.com/tanpawarit/chative-procurement/agent/tool"
)

const defaultTopic = "New Conversation"

// Service answers one conversation turn end to end: it resolves the agent,
// runs the engine and persists the reply.
type Service struct {
	store  contractx.Store
	caps   *toolx.Capabilities
	models llmx.Provider
	engine *Engine
	cfg    Config
}

func NewService(
	store contractx.Store,
	caps *toolx.Capabilities,
	models llmx.Provider,
	cfg Config,
	opts ...EngineOption,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", contractx.ErrConfiguration)
	}
	if caps == nil {
		return nil, fmt.Errorf("%w: tool capabilities are required", contractx.ErrConfiguration)
	}
	if models == nil {
		return nil, fmt.Errorf("%w: model provider is required", contractx.ErrConfiguration)
	}
	cfg = cfg.withDefaults()
	opts = append([]EngineOption{WithCallTimeout(cfg.CallTimeout)}, opts...)
	return &Service{
		store:  store,
		caps:   caps,
		models: models,
		engine: NewEngine(opts...),
		cfg:    cfg,
	}, nil
}

func (s *Service) RespondTurn(ctx context.Context, conversationID string) (TurnResult, error) {
	if strings.TrimSpace(conversationID) == "" {
		return TurnResult{}, fmt.Errorf("%w: conversation id is required", contractx.ErrValidation)
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return TurnResult{}, err
	}
	if !conv.VendorScoped() && conv.OrganizationID == "" {
		return TurnResult{}, fmt.Errorf("%w: conversation=%s", contractx.ErrMissingContext, conv.ID)
	}

	agent, err := s.resolveAgent(ctx, conv)
	if err != nil {
		return TurnResult{}, err
	}

	history, err := s.store.ListMessages(ctx, conv.ID, s.cfg.HistoryLimit)
	if err != nil {
		return TurnResult{}, fmt.Errorf("list messages: %w", err)
	}

	chatModel, err := s.models.ModelFor(ctx, agent)
	if err != nil {
		return TurnResult{}, err
	}

	tools, exec := s.caps.BuildForConversation(conv)
	out, err := s.engine.Run(ctx, TurnInput{
		Conversation: conv,
		Agent:        agent,
		History:      history,
		Model:        chatModel,
		Tools:        tools,
		Execute:      exec,
	})
	if err != nil {
		return TurnResult{}, err
	}

	reply := strings.TrimSpace(out.Reply)
	if reply == "" {
		reply = NoResponseSentinel
	}
	msg, err := s.store.AppendMessage(ctx, contractx.Message{
		ConversationID: conv.ID,
		Role:           contractx.RoleAssistant,
		SenderType:     agent.SenderType(),
		Content:        reply,
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("persist assistant message: %w", err)
	}

	log.Info().
		Str("conversation_id", conv.ID).
		Str("outcome", string(out.Outcome)).
		Bool("forced_search", out.Turn.Forced).
		Msg("turn completed")

	return TurnResult{Reply: reply, Message: msg, Outcome: out.Outcome}, nil
}

// resolveAgent picks the vendor's negotiator for vendor-scoped conversations,
// falling back to the organization's buyer.
func (s *Service) resolveAgent(ctx context.Context, conv contractx.Conversation) (contractx.Agent, error) {
	if conv.VendorScoped() {
		agent, err := s.store.FindAgent(ctx, contractx.OwnerVendor, conv.VendorID, contractx.AgentKindNegotiator)
		if err == nil {
			return agent, nil
		}
		if !errors.Is(err, contractx.ErrNotFound) {
			return contractx.Agent{}, fmt.Errorf("find negotiator agent: %w", err)
		}
		if conv.OrganizationID == "" {
			return contractx.Agent{}, fmt.Errorf("%w: no negotiator agent for vendor=%s", contractx.ErrNotFound, conv.VendorID)
		}
	}

	agent, err := s.store.FindAgent(ctx, contractx.OwnerOrganization, conv.OrganizationID, contractx.AgentKindBuyer)
	if err != nil {
		if errors.Is(err, contractx.ErrNotFound) {
			return contractx.Agent{}, fmt.Errorf("%w: no suitable agent for conversation=%s", contractx.ErrNotFound, conv.ID)
		}
		return contractx.Agent{}, fmt.Errorf("find buyer agent: %w", err)
	}
	return agent, nil
}

// StartConversation opens a conversation for an organization, optionally
// scoped to one vendor.
func (s *Service) StartConversation(ctx context.Context, organizationID, vendorID, topic string) (contractx.Conversation, error) {
	organizationID = strings.TrimSpace(organizationID)
	vendorID = strings.TrimSpace(vendorID)
	if organizationID == "" && vendorID == "" {
		return contractx.Conversation{}, fmt.Errorf("%w: organization or vendor is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(topic) == "" {
		topic = defaultTopic
	}
	return s.store.CreateConversation(ctx, contractx.Conversation{
		OrganizationID: organizationID,
		VendorID:       vendorID,
		Topic:          strings.TrimSpace(topic),
		Status:         contractx.ConversationOpen,
	})
}

// PostUserMessage appends a user message ahead of a turn.
func (s *Service) PostUserMessage(ctx context.Context, conversationID, content string) (contractx.Message, error) {
	if strings.TrimSpace(content) == "" {
		return contractx.Message{}, fmt.Errorf("%w: message content is required", contractx.ErrValidation)
	}
	return s.store.AppendMessage(ctx, contractx.Message{
		ConversationID: conversationID,
		Role:           contractx.RoleUser,
		SenderType:     contractx.SenderUser,
		Content:        content,
	})
}
