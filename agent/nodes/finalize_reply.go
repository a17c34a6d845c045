package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := in.Reply
	if in.Failed() {
		in.enter(StateFailed)
		reply = contractx.RenderError(in.Err)
	} else {
		in.enter(StateDone)
	}

	return GraphOutput{
		Reply:      reply,
		Err:        in.Err,
		Messages:   in.Messages,
		Path:       in.Path,
		ModelCalls: in.ModelCalls,
	}, nil
}
