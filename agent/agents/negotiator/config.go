package negotiator

import "time"

const (
	// TurnBudget bounds the model/tool cycles of one turn.
	TurnBudget          = 4
	DefaultHistoryLimit = 50
	DefaultCallTimeout  = 30 * time.Second
)

type Config struct {
	HistoryLimit int           `split_words:"true" default:"50"`
	CallTimeout  time.Duration `split_words:"true" default:"30s"`
}

func (c Config) withDefaults() Config {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	return c
}
