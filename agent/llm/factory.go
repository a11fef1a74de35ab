package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
	openrouterx "github.com/tanpawarit/chative-procurement/pkg/openrouter"
)

// Provider hands out the chat model an agent runs on.
type Provider interface {
	ModelFor(ctx context.Context, agent contractx.Agent) (model.ToolCallingChatModel, error)
}

// Factory builds and caches one chat model per model/temperature pair.
type Factory struct {
	cfg    Config
	client *openaisdk.Client

	mu     sync.Mutex
	models map[string]model.ToolCallingChatModel
}

var _ Provider = (*Factory)(nil)

func NewFactory(cfg Config) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Factory{cfg: cfg, models: map[string]model.ToolCallingChatModel{}}
	if cfg.Driver != DriverEino {
		f.client = openrouterx.NewClient(cfg.OpenRouterFor(contractx.Agent{}))
		if f.client == nil {
			return nil, fmt.Errorf("%w: llm client could not be created", contractx.ErrConfiguration)
		}
	}
	return f, nil
}

func (f *Factory) ModelFor(ctx context.Context, agent contractx.Agent) (model.ToolCallingChatModel, error) {
	or := f.cfg.OpenRouterFor(agent)
	key := or.Model + "|" + strconv.FormatFloat(float64(or.Temperature), 'f', -1, 32)

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.models[key]; ok {
		return m, nil
	}

	var (
		m   model.ToolCallingChatModel
		err error
	)
	if f.cfg.Driver == DriverEino {
		m, err = or.New(ctx)
	} else {
		m, err = openrouterx.NewChatModel(f.client, or)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrConfiguration, err)
	}
	f.models[key] = m
	return m, nil
}

// AsModelError converts a failed model call into a LanguageModelError,
// lifting the upstream status and body when the SDK exposes them.
func AsModelError(err error) *contractx.LanguageModelError {
	if err == nil {
		return nil
	}
	var lmErr *contractx.LanguageModelError
	if errors.As(err, &lmErr) {
		return lmErr
	}
	out := &contractx.LanguageModelError{
		Err:     err,
		Timeout: errors.Is(err, context.DeadlineExceeded),
	}
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		out.Status = apiErr.StatusCode
		out.Body = apiErr.RawJSON()
	}
	return out
}

// Unavailable is a Provider that always fails with the configuration error
// that kept the real factory from starting.
type Unavailable struct {
	Err error
}

func (u Unavailable) ModelFor(context.Context, contractx.Agent) (model.ToolCallingChatModel, error) {
	if u.Err == nil {
		return nil, fmt.Errorf("%w: language model is not configured", contractx.ErrConfiguration)
	}
	if errors.Is(u.Err, contractx.ErrConfiguration) {
		return nil, u.Err
	}
	return nil, fmt.Errorf("%w: %v", contractx.ErrConfiguration, u.Err)
}
