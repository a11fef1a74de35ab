package negotiator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
	intentx "github.com/tanpawarit/chative-procurement/agent/intent"
	llmx "github.com/tanpawarit/chative-procurement/agent/llm"
	promptx "github.com/tanpawarit/chative-procurement/agent/prompt"
	toolx "github.com/tanpawarit/chative-procurement/agent/tool"
)

const forcedSearchLimit = 10

// Engine runs the bounded model/tool loop of a single conversation turn.
type Engine struct {
	prompts     promptx.PromptSet
	classifier  contractx.IntentClassifier
	callTimeout time.Duration
	budget      int
}

type EngineOption func(*Engine)

func WithClassifier(c contractx.IntentClassifier) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

func WithCallTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

func WithPrompts(p promptx.PromptSet) EngineOption {
	return func(e *Engine) {
		e.prompts = p
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		prompts:     promptx.LoadPromptSet(),
		classifier:  intentx.NewKeywordClassifier(),
		callTimeout: DefaultCallTimeout,
		budget:      TurnBudget,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

type TurnInput struct {
	Conversation contractx.Conversation
	Agent        contractx.Agent
	History      []contractx.Message
	Model        einomodel.ToolCallingChatModel
	Tools        []*schema.ToolInfo
	Execute      toolx.Executor
}

type EngineResult struct {
	Reply      string
	Outcome    TurnOutcome
	Turn       TurnContext
	Transcript []*schema.Message
}

func (e *Engine) Run(ctx context.Context, in TurnInput) (EngineResult, error) {
	if in.Model == nil || in.Execute == nil {
		return EngineResult{}, fmt.Errorf("%w: turn needs a model and a tool executor", contractx.ErrConfiguration)
	}

	toolModel, err := in.Model.WithTools(in.Tools)
	if err != nil {
		return EngineResult{}, fmt.Errorf("%w: bind tools: %v", contractx.ErrConfiguration, err)
	}
	runner, err := compileModelStepGraph(ctx, toolModel)
	if err != nil {
		return EngineResult{}, fmt.Errorf("%w: %v", contractx.ErrConfiguration, err)
	}

	system := e.prompts.System(in.Conversation.VendorScoped(), in.Agent.SystemPrompt)
	messages := append([]*schema.Message{schema.SystemMessage(system)}, toSchemaMessages(in.History)...)
	lastUser := lastUserContent(in.History)

	logger := log.With().
		Str("conversation_id", in.Conversation.ID).
		Str("agent_id", in.Agent.ID).
		Logger()

	var tc TurnContext
	for tc.Cycles < e.budget {
		tc.Cycles++

		msg, err := e.generate(ctx, runner, messages)
		if err != nil {
			return EngineResult{}, err
		}

		calls := nonEmptyCalls(msg.ToolCalls)
		if len(calls) == 0 {
			if !tc.Searched && e.classifier.ShouldForceSearch(lastUser) {
				calls = []schema.ToolCall{forcedSearchCall(lastUser)}
				tc.Forced = true
				logger.Debug().Int("cycle", tc.Cycles).Msg("forcing catalog search")
				msg = &schema.Message{Role: schema.Assistant}
			} else {
				reply := strings.TrimSpace(msg.Content)
				if reply == "" {
					reply = Synthesize(tc.Catalog, tc.Vendors, lastUser)
				}
				messages = append(messages, schema.AssistantMessage(reply, nil))
				logger.Info().Int("cycles", tc.Cycles).Msg("turn finished with final reply")
				return EngineResult{Reply: reply, Outcome: OutcomeFinalReply, Turn: tc, Transcript: messages}, nil
			}
		}

		messages = append(messages, schema.AssistantMessage(msg.Content, calls))
		for _, call := range calls {
			content, err := e.runTool(ctx, &tc, in.Execute, call)
			if err != nil {
				return EngineResult{}, err
			}
			logger.Debug().Int("cycle", tc.Cycles).Str("tool", call.Function.Name).Msg("tool executed")
			toolMsg := schema.ToolMessage(content, call.ID)
			toolMsg.ToolName = call.Function.Name
			messages = append(messages, toolMsg)
		}
	}

	reply := Synthesize(tc.Catalog, tc.Vendors, lastUser)
	logger.Info().Int("cycles", tc.Cycles).Msg("turn budget exhausted, synthesized reply")
	return EngineResult{Reply: reply, Outcome: OutcomeBudgetExhausted, Turn: tc, Transcript: messages}, nil
}

func (e *Engine) generate(
	ctx context.Context,
	runner compose.Runnable[[]*schema.Message, *schema.Message],
	messages []*schema.Message,
) (*schema.Message, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	msg, err := runner.Invoke(callCtx, messages)
	if err != nil {
		lmErr := llmx.AsModelError(err)
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			lmErr.Timeout = true
		}
		return nil, lmErr
	}
	if msg == nil {
		return nil, &contractx.LanguageModelError{Err: fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)}
	}
	return msg, nil
}

// runTool executes one call and returns the tool message content.
func (e *Engine) runTool(ctx context.Context, tc *TurnContext, exec toolx.Executor, call schema.ToolCall) (string, error) {
	name := strings.TrimSpace(call.Function.Name)

	if name == toolx.ToolCreatePreOrder && tc.PreOrderID != "" {
		return marshalToolContent(map[string]any{"info": "pre_order_already_created", "id": tc.PreOrderID})
	}

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return marshalToolContent(map[string]any{"error": fmt.Sprintf("invalid arguments for tool=%s: %v", name, err)})
		}
	}

	res, err := exec(ctx, name, args)
	if err != nil {
		return "", fmt.Errorf("execute tool=%s: %w", name, err)
	}
	if name == toolx.ToolSearchProducts {
		tc.Searched = true
	}
	if res.Error != "" {
		return marshalToolContent(map[string]any{"error": res.Error})
	}

	switch out := res.Result.(type) {
	case toolx.SearchProductsOutput:
		tc.Catalog = out.Products
	case toolx.ListVendorsOutput:
		tc.Vendors = out.Vendors
	case toolx.CreatePreOrderOutput:
		tc.PreOrderID = out.PreOrder.ID
	}
	return marshalToolContent(res.Result)
}

func marshalToolContent(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(raw), nil
}

func forcedSearchCall(query string) schema.ToolCall {
	args, _ := json.Marshal(map[string]any{"query": query, "limit": forcedSearchLimit})
	return schema.ToolCall{
		ID:   "forced-" + uuid.NewString(),
		Type: "function",
		Function: schema.FunctionCall{
			Name:      toolx.ToolSearchProducts,
			Arguments: string(args),
		},
	}
}

func nonEmptyCalls(calls []schema.ToolCall) []schema.ToolCall {
	out := make([]schema.ToolCall, 0, len(calls))
	for _, c := range calls {
		if strings.TrimSpace(c.Function.Name) == "" {
			continue
		}
		if c.ID == "" {
			c.ID = "call-" + uuid.NewString()
		}
		out = append(out, c)
	}
	return out
}

func toSchemaMessages(history []contractx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		msg := &schema.Message{
			Role:       schema.RoleType(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolName:   m.ToolName,
		}
		for _, c := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
				ID:       c.ID,
				Type:     "function",
				Function: schema.FunctionCall{Name: c.Name, Arguments: c.Arguments},
			})
		}
		out = append(out, msg)
	}
	return out
}

func lastUserContent(history []contractx.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == contractx.RoleUser {
			return history[i].Content
		}
	}
	return ""
}
