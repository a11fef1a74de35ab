package negotiator

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// compileModelStepGraph wires one model request: sanitize the transcript,
// then call the tool-bound chat model.
func compileModelStepGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
) (compose.Runnable[[]*schema.Message, *schema.Message], error) {
	graph := compose.NewGraph[[]*schema.Message, *schema.Message]()

	if err := graph.AddLambdaNode("sanitize",
		compose.InvokableLambda(func(ctx context.Context, in []*schema.Message) ([]*schema.Message, error) {
			return sanitizeMessages(in), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add model step sanitize node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model step model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "sanitize"); err != nil {
		return nil, fmt.Errorf("add model step edge start->sanitize: %w", err)
	}
	if err := graph.AddEdge("sanitize", "model"); err != nil {
		return nil, fmt.Errorf("add model step edge sanitize->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add model step edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("negotiator.model_step"))
	if err != nil {
		return nil, fmt.Errorf("compile model step graph: %w", err)
	}
	return runner, nil
}

// sanitizeMessages copies the transcript, dropping nil entries and empty
// tool-call lists.
func sanitizeMessages(in []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(in))
	for _, m := range in {
		if m == nil {
			continue
		}
		cp := *m
		if len(cp.ToolCalls) == 0 {
			cp.ToolCalls = nil
		}
		out = append(out, &cp)
	}
	return out
}
