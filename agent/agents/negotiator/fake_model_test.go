package negotiator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

type step func(ctx context.Context, input []*schema.Message) (*schema.Message, error)

// scriptedModel replays steps in order and repeats the last one.
type scriptedModel struct {
	mu     sync.Mutex
	steps  []step
	calls  int
	inputs [][]*schema.Message
	tools  []*schema.ToolInfo
}

func (f *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	idx := f.calls
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	f.calls++
	f.inputs = append(f.inputs, input)
	s := f.steps[idx]
	f.mu.Unlock()
	return s(ctx, input)
}

func (f *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *scriptedModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools = tools
	return f, nil
}

func (f *scriptedModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func reply(text string) step {
	return func(context.Context, []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(text, nil), nil
	}
}

func callTools(calls ...schema.ToolCall) step {
	return func(context.Context, []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage("", calls), nil
	}
}

func fail(err error) step {
	return func(context.Context, []*schema.Message) (*schema.Message, error) {
		return nil, err
	}
}

func toolCall(id, name string, args map[string]any) schema.ToolCall {
	raw, _ := json.Marshal(args)
	return schema.ToolCall{
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: string(raw)},
	}
}

type staticProvider struct {
	model einomodel.ToolCallingChatModel
	err   error
	seen  []contractx.Agent
}

func (p *staticProvider) ModelFor(_ context.Context, agent contractx.Agent) (einomodel.ToolCallingChatModel, error) {
	p.seen = append(p.seen, agent)
	if p.err != nil {
		return nil, p.err
	}
	return p.model, nil
}
