// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes read-only Feedwise tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/feedwise/internal/apperr"
	"github.com/starford/feedwise/internal/feeding"
	"github.com/starford/feedwise/internal/models"
)

// NutritionModelURI is the resource describing the calorie and portion formula.
const NutritionModelURI = "feedwise://nutrition-model"

// Server wraps the MCP server with Feedwise tools.
type Server struct {
	mcp *server.MCPServer
	svc *feeding.Service
}

// New creates a new MCP server with all Feedwise tools registered. The
// service should be built without a scheduler; no reminders are armed here.
func New(svc *feeding.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Feedwise",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_profiles",
		mcp.WithDescription("List every pet profile with its daily calories and portion per meal."),
	), s.listProfiles)

	s.mcp.AddTool(mcp.NewTool("get_recommendation",
		mcp.WithDescription("Get the feeding plan of a stored profile."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Profile id as returned by list_profiles")),
	), s.getRecommendation)

	s.mcp.AddTool(mcp.NewTool("calculate_recommendation",
		mcp.WithDescription("Compute a feeding plan for a pet that is not stored. "+
			"Read the "+NutritionModelURI+" resource for the formula."),
		mcp.WithNumber("weight", mcp.Required(), mcp.Description("Body mass in kg, greater than 0")),
		mcp.WithNumber("age", mcp.Description("Age in months (default 0)")),
		mcp.WithString("activity", mcp.Enum("low", "medium", "high"), mcp.Description("Activity level (default medium)")),
		mcp.WithString("food_type", mcp.Required(), mcp.Enum("dry", "wet", "mixed"), mcp.Description("Kind of food")),
		mcp.WithString("meal_times", mcp.Required(), mcp.Description("Comma separated HH:MM times, e.g. \"08:00, 18:00\"")),
	), s.calculateRecommendation)

	s.mcp.AddTool(mcp.NewTool("today_schedule",
		mcp.WithDescription("Today's meal timeline across all profiles, pending meals first."),
	), s.todaySchedule)

	s.mcp.AddTool(mcp.NewTool("export_data",
		mcp.WithDescription("Export every profile as a Feedwise export document (JSON)."),
	), s.exportData)

	s.mcp.AddResource(
		mcp.NewResource(NutritionModelURI, "Nutrition Model",
			mcp.WithResourceDescription("How daily calories and food portions are derived from a profile."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNutritionModel,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listProfiles(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cards, err := s.svc.ListProfiles(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(cards) == 0 {
		return mcp.NewToolResultText("no profiles"), nil
	}
	return jsonResult(cards)
}

func (s *Server) getRecommendation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Recommend(ctx, int64(id))
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("profile %d not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec)
}

func (s *Server) calculateRecommendation(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	weight, err := req.RequireFloat("weight")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	food, err := req.RequireString("food_type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	times, err := req.RequireString("meal_times")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p := models.Profile{
		Weight:    weight,
		Age:       req.GetInt("age", 0),
		Activity:  models.Activity(req.GetString("activity", "")),
		FoodType:  models.FoodType(food),
		MealTimes: models.ParseMealTimes(times),
	}
	rec, err := s.svc.Calculate(p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec)
}

func (s *Server) todaySchedule(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.Today(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no meals scheduled"), nil
	}
	return jsonResult(items)
}

func (s *Server) exportData(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := s.svc.ExportJSON(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readNutritionModel(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NutritionModelURI,
			MIMEType: "text/markdown",
			Text:     NutritionModel,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
