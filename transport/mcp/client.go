package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/manualdrive/game/engine"
	"github.com/wricardo/mcp-training/manualdrive/game/lessons"
	"github.com/wricardo/mcp-training/manualdrive/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Manual Drive Simulator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Manual Drive Simulator - MCP Interface

This is a thin client that proxies all requests to the REST API server.

OBJECTIVE:
Learn to drive a manual transmission car: start the engine, pull away without
stalling, shift through the gears at sensible speeds and stop safely.

AVAILABLE TOOLS:
- create_session / get_session / list_sessions: manage practice vehicles
- vehicle_state: current dashboard (gear, rpm, speed, pedals) plus advice
- toggle_engine, set_clutch, shift_gear, set_throttle, set_brake: the controls
- tick: let time pass so the car accelerates or slows down
- apply_inputs: run a sequence of inputs in one call
- reset_vehicle: back to rest, engine off, neutral
- switch_profile: move a session to another physics profile (resets the vehicle)
- action_history: what happened so far
- list_lessons / get_lesson: the driving course
- list_configs: available physics profiles
- driving_instructions: rules and tips

NOTE: The 'intent' parameter on the control tools is for you to explain your reasoning.`),
	)

	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func intentProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Brief explanation of why you are doing this",
	}
}

func pedalProperty(pedal string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"minimum":     0,
		"maximum":     1,
		"description": fmt.Sprintf("%s position from 0 (released) to 1 (fully pressed)", pedal),
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new practice session with an optional physics profile",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Physics profile to use, e.g. standard, forgiving, sport (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active practice sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "vehicle_state",
		Description: "Get the current dashboard of the vehicle with driving advice",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleVehicleState)

	// Controls
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "toggle_engine",
		Description: "Start the engine (only in neutral) or switch it off",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"intent":     intentProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleToggleEngine)

	for _, pedal := range []struct {
		tool, name, description string
	}{
		{"set_clutch", "clutch", "Set the clutch pedal. Releasing it in gear with no throttle at low speed stalls the engine"},
		{"set_throttle", "throttle", "Set the throttle pedal"},
		{"set_brake", "brake", "Set the brake pedal"},
	} {
		c.mcpServer.AddTool(mcp.Tool{
			Name:        pedal.tool,
			Description: pedal.description,
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"session_id": sessionProperty(),
					"value":      pedalProperty(pedal.name),
					"intent":     intentProperty(),
				},
				Required: []string{"session_id", "value"},
			},
		}, c.pedalHandler(pedal.name))
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "shift_gear",
		Description: "Select a gear. The engine must be running and the clutch pressed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"gear": map[string]interface{}{
					"type":        "integer",
					"minimum":     int(engine.MinGear),
					"maximum":     int(engine.MaxGear),
					"description": "-1 reverse, 0 neutral, 1-5 forward gears",
				},
				"intent": intentProperty(),
			},
			Required: []string{"session_id", "gear"},
		},
	}, c.handleShiftGear)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tick",
		Description: "Advance time so the vehicle accelerates or slows down",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"dt": map[string]interface{}{
					"type":        "number",
					"description": "Seconds per tick (default 1)",
				},
				"count": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Number of ticks (default 1, max %d)", engine.MaxTickCount),
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleTick)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "apply_inputs",
		Description: fmt.Sprintf("Run up to %d inputs in order; stops at the first refused input or stall", engine.MaxBulkInputs),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"inputs": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"action": map[string]interface{}{
								"type": "string",
								"enum": []string{"toggle_engine", "clutch", "shift", "throttle", "brake", "tick", "reset"},
							},
							"value": map[string]interface{}{"type": "number"},
							"gear":  map[string]interface{}{"type": "integer"},
							"dt":    map[string]interface{}{"type": "number"},
							"count": map[string]interface{}{"type": "integer"},
						},
						"required": []string{"action"},
					},
					"description": "Inputs to apply",
				},
				"reset":  map[string]interface{}{"type": "boolean", "description": "Reset before applying"},
				"intent": intentProperty(),
			},
			Required: []string{"session_id", "inputs"},
		},
	}, c.handleApplyInputs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_vehicle",
		Description: "Return the vehicle to rest: engine off, neutral, pedals released",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "switch_profile",
		Description: "Move a session onto another physics profile. The vehicle is reset.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Profile id from list_configs",
				},
			},
			Required: []string{"session_id", "config_id"},
		},
	}, c.handleSwitchProfile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "action_history",
		Description: "Get the action history for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"page":       map[string]interface{}{"type": "integer", "description": "Page number"},
				"limit":      map[string]interface{}{"type": "integer", "description": "Items per page"},
				"order": map[string]interface{}{
					"type": "string",
					"enum": []string{"asc", "desc"},
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleActionHistory)

	// Content
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_lessons",
		Description: "List the driving lessons",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListLessons)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_lesson",
		Description: "Get the steps and tips of a driving lesson",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{"type": "integer", "description": "Lesson number"},
			},
			Required: []string{"id"},
		},
	}, c.handleGetLesson)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available physics profiles",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "driving_instructions",
		Description: "Get the rules of the simulator and driving tips",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleDrivingInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"].(string); ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func sessionPath(args map[string]interface{}, suffix string) (string, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix, nil
}

// control posts body to a vehicle endpoint and renders the ControlResult
func (c *Client) control(ctx context.Context, request mcp.CallToolRequest, suffix string, body interface{}) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), suffix)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.ControlResult
	if err := c.apiCall(ctx, "POST", path, body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatControlResult(&result)), nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nProfile: %s\n\n%s", session.ID, session.ConfigName, formatSnapshot(session.Snapshot))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		result += fmt.Sprintf("- %s (Profile: %s, Status: %s, Created: %s)\n",
			s.ID, s.ConfigName, s.Snapshot.Status, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", path, nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleVehicleState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/snapshot")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.ControlResult
	if err := c.apiCall(ctx, "GET", path, nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSnapshot(result.Snapshot) + "\n" + formatAdvice(result.Advice)), nil
}

func (c *Client) handleToggleEngine(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.control(ctx, request, "/engine", nil)
}

func (c *Client) pedalHandler(pedal string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		value, ok := arguments(request)["value"].(float64)
		if !ok {
			return mcp.NewToolResultError("value must be a number between 0 and 1"), nil
		}
		return c.control(ctx, request, "/"+pedal, map[string]float64{"value": value})
	}
}

func (c *Client) handleShiftGear(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gear, ok := arguments(request)["gear"].(float64)
	if !ok {
		return mcp.NewToolResultError("gear must be an integer from -1 to 5"), nil
	}
	return c.control(ctx, request, "/gear", map[string]int{"gear": int(gear)})
}

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	body := map[string]interface{}{"dt": 1.0, "count": 1}
	if dt, ok := args["dt"].(float64); ok {
		body["dt"] = dt
	}
	if count, ok := args["count"].(float64); ok {
		body["count"] = int(count)
	}
	return c.control(ctx, request, "/tick", body)
}

func (c *Client) handleApplyInputs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/inputs")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Round-trip through JSON so the inputs take engine.Input's field rules
	raw, err := json.Marshal(args["inputs"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var inputs []engine.Input
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid inputs: %v", err)), nil
	}
	reset, _ := args["reset"].(bool)

	var result service.BulkResult
	body := map[string]interface{}{"inputs": inputs, "reset": reset}
	if err := c.apiCall(ctx, "POST", path, body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBulkResult(&result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.control(ctx, request, "/reset", nil)
}

func (c *Client) handleSwitchProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/profile")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	configID, _ := args["config_id"].(string)
	if configID == "" {
		return mcp.NewToolResultError("config_id is required"), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "PUT", path, map[string]string{"config_id": configID}, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Session %s now uses profile %s. The vehicle was reset.\n\n%s", session.ID, session.ConfigName, formatSnapshot(session.Snapshot))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleActionHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/history")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	params := url.Values{}
	if page, ok := args["page"].(float64); ok {
		params.Set("page", fmt.Sprint(int(page)))
	}
	if limit, ok := args["limit"].(float64); ok {
		params.Set("limit", fmt.Sprint(int(limit)))
	}
	if order, ok := args["order"].(string); ok {
		params.Set("order", order)
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListLessons(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var list []lessons.Summary
	if err := c.apiCall(ctx, "GET", "/api/lessons", nil, &list); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Driving Lessons:\n\n"
	for _, l := range list {
		result += fmt.Sprintf("%d. %s\n", l.ID, l.Title)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetLesson(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := arguments(request)["id"].(float64)
	if !ok {
		return mcp.NewToolResultError("id must be a lesson number"), nil
	}

	var lesson lessons.Lesson
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/lessons/%d", int(id)), nil, &lesson); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLesson(&lesson)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Profiles:\n\n"
	for _, cfg := range configs {
		result += fmt.Sprintf("• %s (%s)\n  %s\n  Idle: %.0f RPM, Limiter: %.0f RPM\n\n",
			cfg.ConfigID, cfg.Name, cfg.Description, cfg.IdleRPM, cfg.MaxRPM)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleDrivingInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(drivingInstructions), nil
}
