package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/tanpawarit/construction-support-assistant/agent/nodes"
)

func (o *Orchestrator) compileTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode(nodex.NodeBuildMessages,
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.BuildMessages(in, o.tools.Specs())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeBuildMessages, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeFirstModelCall,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.FirstModelCall(ctx, in, o.model, o.firstCall)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeFirstModelCall, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeDispatchTool,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DispatchTool(ctx, in, o.tools)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeDispatchTool, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeSecondModelCall,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SecondModelCall(ctx, in, o.model, o.secondCall)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeSecondModelCall, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeFinalizeReply,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeFinalizeReply, err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			return nodex.RouteAfterFirstCall(in), nil
		},
		map[string]bool{
			nodex.NodeDispatchTool:  true,
			nodex.NodeFinalizeReply: true,
		},
	)
	if err := graph.AddBranch(nodex.NodeFirstModelCall, branch); err != nil {
		return nil, fmt.Errorf("add branch after %s: %w", nodex.NodeFirstModelCall, err)
	}

	edges := [][2]string{
		{compose.START, nodex.NodeBuildMessages},
		{nodex.NodeBuildMessages, nodex.NodeFirstModelCall},
		{nodex.NodeDispatchTool, nodex.NodeSecondModelCall},
		{nodex.NodeSecondModelCall, nodex.NodeFinalizeReply},
		{nodex.NodeFinalizeReply, compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.turn"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
