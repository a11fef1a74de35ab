package mission

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

type missionState struct {
	Req    contractx.MissionRequest
	Groups []VendorGroup
	Offers []contractx.Offer
}

// compileMissionGraph wires validate -> resolve -> fan_out -> aggregate.
func compileMissionGraph(
	ctx context.Context,
	c *Coordinator,
) (compose.Runnable[contractx.MissionRequest, contractx.MissionResult], error) {
	graph := compose.NewGraph[contractx.MissionRequest, contractx.MissionResult]()

	if err := graph.AddLambdaNode("validate",
		compose.InvokableLambda(func(ctx context.Context, req contractx.MissionRequest) (*missionState, error) {
			valid, err := validateRequest(req)
			if err != nil {
				return nil, err
			}
			return &missionState{Req: valid}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add mission validate node: %w", err)
	}

	if err := graph.AddLambdaNode("resolve",
		compose.InvokableLambda(func(ctx context.Context, in *missionState) (*missionState, error) {
			if in == nil {
				return nil, fmt.Errorf("%w: mission graph state is nil", contractx.ErrValidation)
			}
			groups, err := resolveGroups(ctx, c.store, in.Req.Items, c.cfg.FuzzyLimit)
			if err != nil {
				return nil, err
			}
			in.Groups = groups
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add mission resolve node: %w", err)
	}

	if err := graph.AddLambdaNode("fan_out",
		compose.InvokableLambda(func(ctx context.Context, in *missionState) (*missionState, error) {
			if in == nil {
				return nil, fmt.Errorf("%w: mission graph state is nil", contractx.ErrValidation)
			}
			in.Offers = c.fanOut(ctx, in.Req, in.Groups)
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add mission fan_out node: %w", err)
	}

	if err := graph.AddLambdaNode("aggregate",
		compose.InvokableLambda(func(ctx context.Context, in *missionState) (contractx.MissionResult, error) {
			if in == nil {
				return contractx.MissionResult{}, fmt.Errorf("%w: mission graph state is nil", contractx.ErrValidation)
			}
			result := Aggregate(in.Offers, c.vendorNames(ctx, in.Offers))
			log.Info().
				Int("offers", len(result.Offers)).
				Str("recommended_vendor", result.RecommendedVendor).
				Msg("mission completed")
			return result, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add mission aggregate node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate"},
		{"validate", "resolve"},
		{"resolve", "fan_out"},
		{"fan_out", "aggregate"},
		{"aggregate", compose.END},
	}
	for _, e := range edges {
		if err := graph.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("add mission edge %s->%s: %w", e[0], e[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("mission.fan_out_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile mission graph: %w", err)
	}
	return runner, nil
}
