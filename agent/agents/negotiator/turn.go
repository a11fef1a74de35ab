package negotiator

import (
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

// TurnContext accumulates what a turn's tool executions produced.
type TurnContext struct {
	Catalog    []contractx.Product
	Vendors    []contractx.Vendor
	PreOrderID string
	Searched   bool
	Forced     bool
	Cycles     int
}

type TurnOutcome string

const (
	OutcomeFinalReply      TurnOutcome = "final_reply"
	OutcomeBudgetExhausted TurnOutcome = "budget_exhausted"
)

// TurnResult is what one RespondTurn call produced.
type TurnResult struct {
	Reply   string            `json:"content"`
	Message contractx.Message `json:"message"`
	Outcome TurnOutcome       `json:"outcome"`
}
