package agent

import (
	"context"
	"fmt"
	"strings"
)

// StubInvoker is a deterministic Invoker for operational testing and local
// runs without a model behind the gateway. It echoes the last user message
// or the instruction.
type StubInvoker struct{}

func (StubInvoker) Invoke(ctx context.Context, req Request, onTool func(ToolEvent)) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if req.Instruction != "" {
		return Result{Actions: []Action{{
			Kind: ActionSendMessage,
			Text: fmt.Sprintf("[stub] ran: %s", req.Instruction),
		}}}, nil
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return Result{Actions: []Action{{
				Kind: ActionSendMessage,
				Text: "[stub] echo: " + strings.TrimSpace(req.Messages[i].Content),
			}}}, nil
		}
	}
	return Result{}, nil
}

// StubJudge flags everything as significant. Used when no classifier is wired.
type StubJudge struct{}

func (StubJudge) IsSignificant(ctx context.Context, prompt, result string) (bool, error) {
	return true, nil
}
