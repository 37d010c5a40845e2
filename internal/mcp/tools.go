package mcp

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// WindowArgs are the arguments shared by every tool.
type WindowArgs struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Project string `json:"project,omitempty"`
	Actor   string `json:"actor,omitempty"`
}

var argDescriptions = map[string]string{
	"from":    "Start of the window, YYYY-MM-DD or RFC 3339. Defaults to seven days before 'to'.",
	"to":      "End of the window, YYYY-MM-DD (whole day) or RFC 3339. Defaults to now.",
	"project": "Project name or identifier (case-insensitive, exact). Omit for all active projects.",
	"actor":   "Person to report on. Matching ignores case, dots, dashes, underscores and spaces.",
}

func windowSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[WindowArgs](nil)
	if err != nil {
		return nil, fmt.Errorf("infer tool schema: %w", err)
	}
	for name, desc := range argDescriptions {
		if prop, ok := schema.Properties[name]; ok {
			prop.Description = desc
		}
	}
	return schema, nil
}

func (s *Server) registerTools(server *sdk.Server) error {
	schema, err := windowSchema()
	if err != nil {
		return err
	}

	sdk.AddTool(server, &sdk.Tool{
		Name:        "get_team_activities",
		Description: "List every work item change, comment, subitem update and snapshot in a date window, ordered by time.",
		InputSchema: schema,
	}, s.handleTeamActivities)

	sdk.AddTool(server, &sdk.Tool{
		Name:        "get_person_summary",
		Description: "Summarise each person's completed, in-progress and to-do work items and comments in a date window.",
		InputSchema: schema,
	}, s.handlePersonSummary)

	sdk.AddTool(server, &sdk.Tool{
		Name:        "get_project_summary",
		Description: "Summarise each project's activity in a date window, with per-person breakdowns and active cycle progress.",
		InputSchema: schema,
	}, s.handleProjectSummary)

	return nil
}
