package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
	openrouterx "github.com/tanpawarit/chative-procurement/pkg/openrouter"
)

type Driver string

const (
	DriverEino   Driver = "eino"
	DriverOpenAI Driver = "openai"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	Driver             Driver        `envconfig:"DRIVER" split_words:"true" default:"openai"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	BuyerModel            string  `envconfig:"BUYER_MODEL" split_words:"true"`
	NegotiatorModel       string  `envconfig:"NEGOTIATOR_MODEL" split_words:"true"`
	BuyerTemperature      float32 `envconfig:"BUYER_TEMPERATURE" split_words:"true" default:"-1"`
	NegotiatorTemperature float32 `envconfig:"NEGOTIATOR_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrConfiguration)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrConfiguration)
	}
	switch c.Driver {
	case DriverEino, DriverOpenAI, "":
	default:
		return fmt.Errorf("%w: unknown llm driver %q", contractx.ErrConfiguration, c.Driver)
	}
	return nil
}

// OpenRouterFor resolves the endpoint settings for an agent. The agent record
// wins over per-kind overrides, which win over the defaults.
func (c Config) OpenRouterFor(agent contractx.Agent) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agent.Kind {
	case contractx.AgentKindBuyer:
		if v := strings.TrimSpace(c.BuyerModel); v != "" {
			modelName = v
		}
		if c.BuyerTemperature >= 0 {
			temp = c.BuyerTemperature
		}
	case contractx.AgentKindNegotiator:
		if v := strings.TrimSpace(c.NegotiatorModel); v != "" {
			modelName = v
		}
		if c.NegotiatorTemperature >= 0 {
			temp = c.NegotiatorTemperature
		}
	}

	if v := strings.TrimSpace(agent.Model); v != "" {
		modelName = v
	}
	if agent.Temperature != nil {
		temp = *agent.Temperature
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
