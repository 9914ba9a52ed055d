package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/voicecheck/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store   *storage.Store
	Version string
}

// NewMCPServer creates an MCP server exposing campaign statistics, recall
// selection and campaign start to assistants.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"voicecheck",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("voicecheck: outbound GDPR consent and identity verification calls."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("campaign_summary",
			mcp.WithDescription("Return campaign statistics: contacts, calls, consent and identity counts and rates."),
		),
		mcpCampaignSummary(deps),
	)

	s.AddTool(
		mcp.NewTool("list_recall_candidates",
			mcp.WithDescription("List contacts that should be called again (no response, voicemail, refusal or unconfirmed identity)."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of contacts to return (default 50)")),
		),
		mcpListRecall(deps),
	)

	s.AddTool(
		mcp.NewTool("requeue_recall_candidates",
			mcp.WithDescription("Set every recall candidate back to pending so the next campaign calls them."),
		),
		mcpRequeueRecall(deps),
	)

	s.AddTool(
		mcp.NewTool("start_campaign",
			mcp.WithDescription("Queue a campaign run. Without contact_ids every pending contact is called."),
			mcp.WithArray("contact_ids", mcp.Description("Optional contact ids to call")),
		),
		mcpStartCampaign(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"campaign://summary",
			"Campaign Summary",
			mcp.WithResourceDescription("Current campaign statistics as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSummary(deps),
	)

	return s
}

func mcpCampaignSummary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, err := loadSummary(deps.Store)
		if err != nil {
			return mcpError(fmt.Sprintf("summary failed: %v", err)), nil
		}
		b, err := json.Marshal(s)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListRecall(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 50)
		if limit <= 0 {
			limit = 50
		}

		candidates, err := recallCandidates(deps.Store)
		if err != nil {
			return mcpError(fmt.Sprintf("recall selection failed: %v", err)), nil
		}
		if len(candidates) > limit {
			candidates = candidates[:limit]
		}

		type candidate struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Phone string `json:"phone"`
		}
		out := make([]candidate, len(candidates))
		for i, c := range candidates {
			out[i] = candidate{ID: c.ID, Name: c.FullName(), Phone: c.Phone}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal candidates: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRequeueRecall(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		n, err := requeueCandidates(deps.Store)
		if err != nil {
			return mcpError(fmt.Sprintf("requeued %d contacts with errors: %v", n, err)), nil
		}
		return mcpText(fmt.Sprintf("Requeued %d contacts", n)), nil
	}
}

func mcpStartCampaign(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids := req.GetStringSlice("contact_ids", nil)

		job, err := enqueueCampaign(deps.Store, ids, "mcp")
		if errors.Is(err, errNothingToCall) {
			return mcpError("no pending contacts: import contacts or requeue recall candidates first"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to start campaign: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Queued campaign %s", job.ID)), nil
	}
}

func mcpResourceSummary(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		s, err := loadSummary(deps.Store)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal summary: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
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

