package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/think/internal/criteria"
	"github.com/kalambet/think/internal/evaluation"
	"github.com/kalambet/think/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Evaluations *evaluation.Store
	Sessions    *session.Manager // optional; adds the name to get_stats output
}

// NewMCPServer creates an MCP server with all think tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"think",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("think: score a message against True, Helpful, Important, Necessary and Kind before sending it."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("evaluate_message", toolOptions(
			mcp.WithDescription("Score a message against the five T.H.I.N.K. criteria without saving it."),
		)...),
		mcpEvaluateMessage(),
	)

	s.AddTool(
		mcp.NewTool("save_evaluation", toolOptions(
			mcp.WithDescription("Score a message and record it in the local history. Counts toward today's streak."),
			mcp.WithString("text", mcp.Description("The message being evaluated")),
		)...),
		mcpSaveEvaluation(deps),
	)

	s.AddTool(
		mcp.NewTool("get_stats",
			mcp.WithDescription("Return overall scores, the keep-to-yourself trend and the current streak."),
		),
		mcpGetStats(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"think://history",
			"Evaluation History",
			mcp.WithResourceDescription("Stored evaluations, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceHistory(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"think://progression",
			"Progression",
			mcp.WithResourceDescription("Day streak and tier unlock status"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProgression(deps),
	)

	return s
}

// toolOptions appends one boolean parameter per criterion to opts.
func toolOptions(opts ...mcp.ToolOption) []mcp.ToolOption {
	for _, k := range criteria.Keys {
		opts = append(opts, mcp.WithBoolean(string(k), mcp.Description(criteria.Description(k))))
	}
	return opts
}

func criteriaFromRequest(req mcp.CallToolRequest) criteria.Set {
	var c criteria.Set
	for _, k := range criteria.Keys {
		c = c.With(k, req.GetBool(string(k), false))
	}
	return c
}

func mcpEvaluateMessage() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c := criteriaFromRequest(req)
		v := newScoreView(c)

		var missing []string
		for _, k := range criteria.Keys {
			if !c.Get(k) {
				missing = append(missing, criteria.Label(k))
			}
		}

		text := fmt.Sprintf("%d%%: %s", v.Percentage, v.Message)
		if len(missing) > 0 {
			text += "\nNot met: " + strings.Join(missing, ", ")
		}
		return mcpText(text), nil
	}
}

func mcpSaveEvaluation(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		e := deps.Evaluations.Save(req.GetString("text", ""), criteriaFromRequest(req))

		b, err := json.Marshal(newEvaluationView(e))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal evaluation: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out := struct {
			Name        string          `json:"name,omitempty"`
			Stats       StatsView       `json:"stats"`
			Progression ProgressionView `json:"progression"`
		}{
			Stats:       newStatsView(deps.Evaluations),
			Progression: newProgressionView(deps.Evaluations.Progression()),
		}
		if deps.Sessions != nil {
			if s, err := deps.Sessions.GetSession(); err == nil {
				out.Name = s.Name
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceHistory(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(newEvaluationViews(deps.Evaluations.Load()))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history: %w", err)
		}
		return jsonResource(req.Params.URI, b), nil
	}
}

func mcpResourceProgression(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(newProgressionView(deps.Evaluations.Progression()))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal progression: %w", err)
		}
		return jsonResource(req.Params.URI, b), nil
	}
}

func jsonResource(uri string, b []byte) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
