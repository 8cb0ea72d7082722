package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"goalwise/internal/auth"
	apperrors "goalwise/internal/errors"
	"goalwise/internal/logger"
	"goalwise/internal/tools"
)

const (
	// DefaultMaxSteps bounds the model invocations of one conversation.
	DefaultMaxSteps = 10

	toolConcurrency = 4

	failureText = "Sorry, something went wrong while I was working on that. Please try again."
)

// ToolExecutor is the tool catalog the orchestrator exposes to the model.
type ToolExecutor interface {
	Tools() []tools.Tool
	Execute(ctx context.Context, caller auth.CallerID, name string, args json.RawMessage) tools.Result
}

// Orchestrator runs conversations against a Runtime.
type Orchestrator struct {
	runtime  Runtime
	tools    ToolExecutor
	maxSteps int
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator. maxSteps below one falls back to
// DefaultMaxSteps.
func NewOrchestrator(runtime Runtime, executor ToolExecutor, maxSteps int) *Orchestrator {
	if maxSteps < 1 {
		maxSteps = DefaultMaxSteps
	}
	return &Orchestrator{runtime: runtime, tools: executor, maxSteps: maxSteps, now: time.Now}
}

// Run answers the conversation in messages as the caller attached to ctx,
// passing every event to emit in order. emit is only called from the
// goroutine running Run.
//
// Run returns an error only when the request is rejected before the model
// is called: ErrUnauthenticated without a caller, ErrInvalidInput without a
// user message. Later failures are reported as an error event followed by
// done.
func (o *Orchestrator) Run(ctx context.Context, messages []Message, emit func(Event)) error {
	caller, err := auth.RequireCaller(ctx)
	if err != nil {
		return err
	}

	turns := historyTurns(messages)
	if len(turns) == 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "At least one user message is required")
	}

	log := logger.Named("agent").With("caller", caller)
	catalog := o.tools.Tools()
	specs := make([]ToolSpec, len(catalog))
	names := make([]string, len(catalog))
	for i, t := range catalog {
		specs[i] = ToolSpec{Name: t.Name(), Description: t.Description(), Schema: t.Schema()}
		names[i] = t.Name()
	}

	req := StepRequest{
		System:   systemPrompt(caller, o.now(), names),
		CallerID: string(caller),
		Tools:    specs,
	}
	onText := func(delta string) {
		if delta != "" {
			emit(Event{Type: EventText, Text: delta})
		}
	}

	for step := 1; step <= o.maxSteps; step++ {
		req.Turns = turns
		req.AllowTools = step < o.maxSteps

		resp, err := o.step(ctx, req, onText)
		if err != nil {
			log.Errorw("model step failed", "step", step, "error", err)
			o.fail(emit, err)
			return nil
		}

		if len(resp.ToolCalls) == 0 {
			emit(Event{Type: EventDone, Steps: step})
			return nil
		}
		if !req.AllowTools {
			log.Warnw("model requested tools after the step limit", "step", step, "calls", len(resp.ToolCalls))
			emit(Event{Type: EventDone, Steps: step})
			return nil
		}

		for _, call := range resp.ToolCalls {
			emit(Event{Type: EventToolCall, CallID: call.ID, Tool: call.Name, Arguments: call.Arguments})
		}

		results := o.execute(ctx, caller, resp.ToolCalls)
		toolResults := make([]ToolResult, len(results))
		for i, res := range results {
			call := resp.ToolCalls[i]
			emit(Event{Type: EventToolResult, CallID: call.ID, Tool: call.Name, Result: res})
			toolResults[i] = ToolResult{CallID: call.ID, Content: res.JSON(), IsError: !res.Success()}
		}

		turns = append(turns,
			Turn{Role: RoleAssistant, Text: resp.Text, ToolCalls: resp.ToolCalls},
			Turn{Role: RoleUser, ToolResults: toolResults},
		)

		if err := ctx.Err(); err != nil {
			log.Infow("conversation cancelled", "step", step)
			o.fail(emit, err)
			return nil
		}
	}

	emit(Event{Type: EventDone, Steps: o.maxSteps})
	return nil
}

// step calls the runtime, turning a panic into ErrAssistantUnavailable so
// the stream still ends with error and done events.
func (o *Orchestrator) step(ctx context.Context, req StepRequest, onText func(string)) (resp *StepResponse, err error) {
	defer func() {
		if p := recover(); p != nil {
			resp = nil
			err = apperrors.Wrap(apperrors.ErrAssistantUnavailable, fmt.Errorf("runtime panic: %v", p))
		}
	}()
	return o.runtime.Step(ctx, req, onText)
}

// execute runs the sibling calls of one step concurrently. Results keep the
// order of calls.
func (o *Orchestrator) execute(ctx context.Context, caller auth.CallerID, calls []ToolCall) []tools.Result {
	results := make([]tools.Result, len(calls))
	var g errgroup.Group
	g.SetLimit(toolConcurrency)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = o.tools.Execute(ctx, caller, call.Name, call.Arguments)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) fail(emit func(Event), err error) {
	msg := failureText
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.StatusCode < 500 {
		msg = appErr.Message
	}
	emit(Event{Type: EventError, Error: msg})
	emit(Event{Type: EventDone})
}

// historyTurns converts client messages into model turns. System messages
// are dropped in favour of the server prompt, as are empty messages and any
// assistant messages before the first user message.
func historyTurns(messages []Message) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, m := range messages {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		switch m.Role {
		case RoleUser:
		case RoleAssistant:
			if len(turns) == 0 {
				continue
			}
		default:
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == m.Role {
			turns[n-1].Text += "\n\n" + text
			continue
		}
		turns = append(turns, Turn{Role: m.Role, Text: text})
	}
	for _, t := range turns {
		if t.Role == RoleUser {
			return turns
		}
	}
	return nil
}
