package negotiator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
	idempotencyx "github.com/tanpawarit/chative-procurement/agent/idempotency"
	storex "github.com/tanpawarit/chative-procurement/agent/store"
	toolx "github.com/tanpawarit/chative-procurement/agent/tool"
)

type engineFixture struct {
	mem    *storex.Memory
	caps   *toolx.Capabilities
	vendor contractx.Vendor
	other  contractx.Vendor
	hex    contractx.Product
}

func newEngineFixture(t *testing.T) engineFixture {
	t.Helper()

	mem := storex.NewMemory()
	f := engineFixture{mem: mem}
	f.vendor = mem.PutVendor(contractx.Vendor{Name: "Acme Supply"})
	f.other = mem.PutVendor(contractx.Vendor{Name: "Bolt Works"})
	mem.Approve("org-1", f.vendor.ID, f.other.ID)
	stock := 40
	f.hex = mem.PutProduct(contractx.Product{VendorID: f.vendor.ID, SKU: "HX-100", Name: "Hex bolt", Brand: "Acme", Price: 0.25, Stock: &stock})
	mem.PutProduct(contractx.Product{VendorID: f.other.ID, SKU: "CB-200", Name: "Carriage bolt", Brand: "Bolt", Price: 0.4})

	guard, err := idempotencyx.NewGuard(mem)
	if err != nil {
		t.Fatalf("NewGuard() error = %v", err)
	}
	caps, err := toolx.NewCapabilities(mem, mem, guard)
	if err != nil {
		t.Fatalf("NewCapabilities() error = %v", err)
	}
	f.caps = caps
	return f
}

type countingExecutor struct {
	inner toolx.Executor
	calls map[string]int
}

func (c *countingExecutor) exec(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
	c.calls[tool]++
	return c.inner(ctx, tool, args)
}

func (f engineFixture) input(conv contractx.Conversation, model *scriptedModel, userText string) (TurnInput, *countingExecutor) {
	tools, exec := f.caps.BuildForConversation(conv)
	counter := &countingExecutor{inner: exec, calls: map[string]int{}}
	return TurnInput{
		Conversation: conv,
		Agent:        contractx.Agent{ID: "agent-1", Kind: contractx.AgentKindBuyer, SystemPrompt: "You buy hardware."},
		History: []contractx.Message{
			{Role: contractx.RoleUser, Content: userText},
		},
		Model:   model,
		Tools:   tools,
		Execute: counter.exec,
	}, counter
}

func TestEngineTerminatesWithinBudget(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	model := &scriptedModel{steps: []step{
		callTools(toolCall("c1", toolx.ToolSearchProducts, map[string]any{"query": "bolt"})),
	}}
	in, counter := f.input(contractx.Conversation{ID: "conv", OrganizationID: "org-1"}, model, "show me bolts")

	out, err := NewEngine().Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if model.callCount() != TurnBudget {
		t.Fatalf("model calls = %d, want %d", model.callCount(), TurnBudget)
	}
	if counter.calls[toolx.ToolSearchProducts] != TurnBudget {
		t.Fatalf("search calls = %d, want %d", counter.calls[toolx.ToolSearchProducts], TurnBudget)
	}
	if out.Outcome != OutcomeBudgetExhausted {
		t.Fatalf("outcome = %s", out.Outcome)
	}
	if !strings.HasPrefix(out.Reply, "Here are some available products:") {
		t.Fatalf("unexpected synthesized reply: %q", out.Reply)
	}
}

func TestEngineForcesOneSearchForIntentBearingMessage(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	model := &scriptedModel{steps: []step{
		reply("Let me think about that."),
		reply("We carry Acme and Bolt."),
	}}
	in, counter := f.input(contractx.Conversation{ID: "conv", OrganizationID: "org-1"}, model, "what brands do you have available")

	out, err := NewEngine().Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if counter.calls[toolx.ToolSearchProducts] != 1 {
		t.Fatalf("search calls = %d, want exactly 1", counter.calls[toolx.ToolSearchProducts])
	}
	if out.Reply != "We carry Acme and Bolt." {
		t.Fatalf("reply = %q", out.Reply)
	}
	if !out.Turn.Forced || out.Outcome != OutcomeFinalReply {
		t.Fatalf("unexpected turn state: %#v outcome=%s", out.Turn, out.Outcome)
	}

	second := model.inputs[1]
	last := second[len(second)-1]
	if last.Role != schema.Tool || !strings.HasPrefix(last.ToolCallID, "forced-") {
		t.Fatalf("second request should end with the forced tool result, got %#v", last)
	}
	prev := second[len(second)-2]
	if prev.Role != schema.Assistant || len(prev.ToolCalls) != 1 || prev.ToolCalls[0].ID != last.ToolCallID {
		t.Fatalf("tool message must follow the assistant call that requested it: %#v", prev)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(prev.ToolCalls[0].Function.Arguments), &args); err != nil {
		t.Fatalf("forced args: %v", err)
	}
	if args["query"] != "what brands do you have available" {
		t.Fatalf("forced query = %v", args["query"])
	}
}

func TestEngineAcceptsTextWithoutIntent(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	model := &scriptedModel{steps: []step{reply("Hello! How can I help?")}}
	in, counter := f.input(contractx.Conversation{ID: "conv", OrganizationID: "org-1"}, model, "hi there")

	out, err := NewEngine().Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Reply != "Hello! How can I help?" || model.callCount() != 1 {
		t.Fatalf("reply=%q calls=%d", out.Reply, model.callCount())
	}
	if len(counter.calls) != 0 {
		t.Fatalf("no tool should run: %#v", counter.calls)
	}
}

func TestEngineShortCircuitsRepeatedPreOrder(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	args := map[string]any{"items": []any{map[string]any{"product_id": "HX-100", "quantity": 10}}}
	model := &scriptedModel{steps: []step{
		callTools(
			toolCall("p1", toolx.ToolCreatePreOrder, args),
			toolCall("p2", toolx.ToolCreatePreOrder, map[string]any{"items": []any{map[string]any{"product_id": "HX-100", "quantity": 11}}}),
		),
		reply("Draft created."),
	}}
	in, counter := f.input(contractx.Conversation{ID: "conv", OrganizationID: "org-1", VendorID: f.vendor.ID}, model, "order 10 hex bolts")

	out, err := NewEngine().Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if counter.calls[toolx.ToolCreatePreOrder] != 1 {
		t.Fatalf("create_pre_order executed %d times, want 1", counter.calls[toolx.ToolCreatePreOrder])
	}
	if n := len(f.mem.DraftOrders()); n != 1 {
		t.Fatalf("draft orders = %d, want 1", n)
	}

	second := model.inputs[1]
	last := second[len(second)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last.Content), &payload); err != nil {
		t.Fatalf("decode short-circuit payload: %v", err)
	}
	if payload["info"] != "pre_order_already_created" || payload["id"] != out.Turn.PreOrderID {
		t.Fatalf("unexpected short-circuit payload: %#v", payload)
	}
}

func TestEngineSerializesToolErrors(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	model := &scriptedModel{steps: []step{
		callTools(toolCall("p1", toolx.ToolCreatePreOrder, map[string]any{"items": []any{map[string]any{"product_id": "nothing-like-it", "quantity": 1}}})),
		reply("Which product did you mean?"),
	}}
	in, _ := f.input(contractx.Conversation{ID: "conv", OrganizationID: "org-1"}, model, "order the thing")

	out, err := NewEngine().Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Reply != "Which product did you mean?" {
		t.Fatalf("reply = %q", out.Reply)
	}
	last := model.inputs[1][len(model.inputs[1])-1]
	if !strings.Contains(last.Content, `"error":"product not found for identifier: nothing-like-it"`) {
		t.Fatalf("tool content = %s", last.Content)
	}
}

func TestEngineHidesListVendorsInVendorScope(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	model := &scriptedModel{steps: []step{
		callTools(toolCall("v1", toolx.ToolListVendors, map[string]any{})),
		reply("I can only help with this vendor."),
	}}
	in, counter := f.input(contractx.Conversation{ID: "conv", OrganizationID: "org-1", VendorID: f.vendor.ID}, model, "who else sells bolts?")

	if _, err := NewEngine().Run(context.Background(), in); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, info := range model.tools {
		if info.Name == toolx.ToolListVendors {
			t.Fatalf("list_vendors declared for vendor-scoped conversation")
		}
	}
	last := model.inputs[1][len(model.inputs[1])-1]
	if !strings.Contains(last.Content, "unavailable") || strings.Contains(last.Content, "Bolt Works") {
		t.Fatalf("vendor list leaked: %s", last.Content)
	}
	if counter.calls[toolx.ToolListVendors] != 1 {
		t.Fatalf("executor should have been asked once and refused")
	}
}

func TestEngineReturnsLanguageModelError(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	model := &scriptedModel{steps: []step{fail(&contractx.LanguageModelError{Status: 429, Body: "rate limited"})}}
	in, _ := f.input(contractx.Conversation{ID: "conv", OrganizationID: "org-1"}, model, "hi")

	_, err := NewEngine().Run(context.Background(), in)
	lmErr, ok := asLMError(err)
	if !ok {
		t.Fatalf("Run() error = %v, want LanguageModelError", err)
	}
	if lmErr.Status != 429 || lmErr.Body != "rate limited" {
		t.Fatalf("unexpected error payload: %#v", lmErr)
	}
	if model.callCount() != 1 {
		t.Fatalf("model error must not be retried, calls = %d", model.callCount())
	}
}

func TestEngineTimesOutModelCall(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	model := &scriptedModel{steps: []step{
		func(ctx context.Context, _ []*schema.Message) (*schema.Message, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}}
	in, _ := f.input(contractx.Conversation{ID: "conv", OrganizationID: "org-1"}, model, "hi")

	_, err := NewEngine(WithCallTimeout(20*time.Millisecond)).Run(context.Background(), in)
	lmErr, ok := asLMError(err)
	if !ok || !lmErr.Timeout {
		t.Fatalf("Run() error = %v, want timeout LanguageModelError", err)
	}
}

func TestSanitizeMessagesDropsEmptyToolCalls(t *testing.T) {
	t.Parallel()

	in := []*schema.Message{
		nil,
		{Role: schema.Assistant, Content: "hi", ToolCalls: []schema.ToolCall{}},
	}
	out := sanitizeMessages(in)
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if out[0].ToolCalls != nil {
		t.Fatalf("empty tool call list should be stripped")
	}
	if in[1].ToolCalls == nil {
		t.Fatalf("input must not be mutated")
	}
}
