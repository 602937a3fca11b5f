package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/feedwise/internal/feeding"
	"github.com/starford/feedwise/internal/locale"
	"github.com/starford/feedwise/internal/models"
	"github.com/starford/feedwise/internal/nutrition"
	"github.com/starford/feedwise/internal/testutil"
)

func testServer(t *testing.T) (*Server, *feeding.Service) {
	t.Helper()

	db := testutil.TestStore(t)
	tr, err := locale.New("en")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := feeding.NewService(db, tr, feeding.WithClock(func() time.Time { return now }))
	return New(svc, "test"), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_profiles":
		result, err = srv.listProfiles(ctx, req)
	case "get_recommendation":
		result, err = srv.getRecommendation(ctx, req)
	case "calculate_recommendation":
		result, err = srv.calculateRecommendation(ctx, req)
	case "today_schedule":
		result, err = srv.todaySchedule(ctx, req)
	case "export_data":
		result, err = srv.exportData(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func addLuna(t *testing.T, svc *feeding.Service) int64 {
	t.Helper()
	card, err := svc.CreateProfile(context.Background(), models.Profile{
		Name:      "Luna",
		Weight:    4,
		Age:       12,
		Activity:  models.ActivityMedium,
		FoodType:  models.FoodDry,
		MealTimes: models.MealTimes{"08:00", "18:00"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return card.ID
}

func TestListProfiles(t *testing.T) {
	srv, svc := testServer(t)

	if got := resultText(callTool(t, srv, "list_profiles", nil)); got != "no profiles" {
		t.Errorf("empty list = %q", got)
	}

	addLuna(t, svc)
	res := callTool(t, srv, "list_profiles", nil)
	if res.IsError {
		t.Fatalf("list_profiles: %s", resultText(res))
	}
	text := resultText(res)
	if !strings.Contains(text, `"name": "Luna"`) || !strings.Contains(text, `"dailyCalories": 285`) {
		t.Errorf("unexpected listing:\n%s", text)
	}
}

func TestGetRecommendation(t *testing.T) {
	srv, svc := testServer(t)
	id := addLuna(t, svc)

	res := callTool(t, srv, "get_recommendation", map[string]any{"id": float64(id)})
	if res.IsError {
		t.Fatalf("get_recommendation: %s", resultText(res))
	}
	var rec nutrition.Recommendation
	if err := json.Unmarshal([]byte(resultText(res)), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.GramsPerMeal != 38 || rec.MealCount != 2 {
		t.Errorf("unexpected recommendation %+v", rec)
	}

	missing := callTool(t, srv, "get_recommendation", map[string]any{"id": float64(404)})
	if !missing.IsError || !strings.Contains(resultText(missing), "not found") {
		t.Errorf("expected not found error, got %q", resultText(missing))
	}
}

func TestCalculateRecommendation(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "calculate_recommendation", map[string]any{
		"weight":     float64(4),
		"age":        float64(12),
		"food_type":  "mixed",
		"meal_times": "08:00, 18:00",
	})
	if res.IsError {
		t.Fatalf("calculate_recommendation: %s", resultText(res))
	}
	var rec nutrition.Recommendation
	_ = json.Unmarshal([]byte(resultText(res)), &rec)
	if rec.DryPerMeal != 19 || rec.WetPerMeal != 79 {
		t.Errorf("unexpected split %+v", rec)
	}

	bad := callTool(t, srv, "calculate_recommendation", map[string]any{
		"weight":     float64(4),
		"food_type":  "dry",
		"meal_times": "",
	})
	if !bad.IsError {
		t.Error("expected error without meal times")
	}

	missing := callTool(t, srv, "calculate_recommendation", map[string]any{"food_type": "dry"})
	if !missing.IsError {
		t.Error("expected error without weight")
	}
}

func TestTodaySchedule(t *testing.T) {
	srv, svc := testServer(t)

	if got := resultText(callTool(t, srv, "today_schedule", nil)); got != "no meals scheduled" {
		t.Errorf("empty schedule = %q", got)
	}

	addLuna(t, svc)
	text := resultText(callTool(t, srv, "today_schedule", nil))
	var items []feeding.ScheduleEntry
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		t.Fatalf("decode: %v\n%s", err, text)
	}
	if len(items) != 2 || items[0].Time != "18:00" || items[1].Status != "completed" {
		t.Errorf("unexpected schedule %+v", items)
	}
}

func TestExportData(t *testing.T) {
	srv, svc := testServer(t)
	addLuna(t, svc)

	text := resultText(callTool(t, srv, "export_data", nil))
	snap, err := models.DecodeSnapshot([]byte(text))
	if err != nil {
		t.Fatalf("export is not importable: %v", err)
	}
	if len(snap.Profiles) != 1 || snap.Version != models.SnapshotVersion {
		t.Errorf("unexpected export %+v", snap)
	}
}

func TestNutritionModelResource(t *testing.T) {
	srv, _ := testServer(t)

	contents, err := srv.readNutritionModel(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != NutritionModelURI || !strings.Contains(tc.Text, "RER") {
		t.Errorf("unexpected resource %+v", contents[0])
	}
}
