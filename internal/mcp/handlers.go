package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"plane-digest/internal/activity"
	"plane-digest/internal/plane"
	"plane-digest/internal/report"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// ResponseEnvelope wraps tool data with hints for the calling agent.
type ResponseEnvelope struct {
	Data     any      `json:"data"`
	Guidance []string `json:"_guidance,omitempty"`
}

func (s *Server) handleTeamActivities(ctx context.Context, _ *sdk.CallToolRequest, args WindowArgs) (*sdk.CallToolResult, any, error) {
	res, errResult := s.run(ctx, "get_team_activities", args, false)
	if res == nil {
		return errResult, nil, nil
	}
	return jsonResult(ResponseEnvelope{
		Data: res.Records,
		Guidance: []string{
			"Records are ordered by timestamp; for each work item the last record carrying a state is its current state.",
			"Snapshot records stand in for relevant items that had no recorded activity in the window.",
		},
	}), nil, nil
}

func (s *Server) handlePersonSummary(ctx context.Context, _ *sdk.CallToolRequest, args WindowArgs) (*sdk.CallToolResult, any, error) {
	res, errResult := s.run(ctx, "get_person_summary", args, false)
	if res == nil {
		return errResult, nil, nil
	}
	people := res.People
	if args.Actor != "" {
		people = people[:0:0]
		for _, p := range res.People {
			if activity.NamesMatch(args.Actor, p.Name) {
				people = append(people, p)
			}
		}
	}
	return jsonResult(ResponseEnvelope{
		Data: people,
		Guidance: []string{
			"Blocked items are listed under inProgress with their state name.",
		},
	}), nil, nil
}

func (s *Server) handleProjectSummary(ctx context.Context, _ *sdk.CallToolRequest, args WindowArgs) (*sdk.CallToolResult, any, error) {
	res, errResult := s.run(ctx, "get_project_summary", args, true)
	if res == nil {
		return errResult, nil, nil
	}
	return jsonResult(ResponseEnvelope{Data: res.Projects}), nil, nil
}

// run executes one report for a tool call. It returns either a non-empty result or
// the tool result to send back instead.
func (s *Server) run(ctx context.Context, tool string, args WindowArgs, withCycles bool) (*report.Result, *sdk.CallToolResult) {
	window, err := report.ParseWindow(args.From, args.To, s.now())
	if err != nil {
		return nil, errorResult(err.Error())
	}

	res, err := s.reporter.Run(ctx, report.Request{
		Window:     window,
		Project:    args.Project,
		Actor:      args.Actor,
		Scope:      tool,
		WithCycles: withCycles,
	})
	if err != nil {
		log.Error().Err(err).Str("tool", tool).Msg("Tool call failed")
		return nil, errorResult(userMessage(err))
	}
	if res.Empty() {
		return nil, textResult(report.NoActivityMessage)
	}
	return res, nil
}

// userMessage turns an error into something a chat user can act on.
func userMessage(err error) string {
	switch {
	case errors.Is(err, activity.ErrProjectNotFound):
		return err.Error()
	case errors.Is(err, plane.ErrAccessDenied):
		return "Plane rejected the API key for this workspace."
	case errors.Is(err, plane.ErrRateLimited):
		return "Plane is rate limiting requests; try again in a minute."
	case errors.Is(err, plane.ErrNotInitialized):
		return "The Plane connection is not configured."
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "The request was cancelled before it finished."
	}
	return fmt.Sprintf("Failed to fetch activity: %v", err)
}

func textResult(text string) *sdk.CallToolResult {
	return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: text}}}
}

func errorResult(text string) *sdk.CallToolResult {
	res := textResult(text)
	res.IsError = true
	return res
}

func jsonResult(v any) *sdk.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %v", err))
	}
	return textResult(string(out))
}
