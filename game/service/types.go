package service

import (
	"time"

	"github.com/wricardo/mcp-training/manualdrive/game/engine"
)

// Event types reported alongside control results
const (
	EventEngineOn  = "engine_on"
	EventEngineOff = "engine_off"
	EventStall     = "stall"
	EventOverRev   = "over_rev"
	EventShift     = "shift"
	EventReset     = "reset"
)

// SessionInfo provides information about a driving session
type SessionInfo struct {
	ID             string                `json:"id"`
	ConfigName     string                `json:"config_name"`
	CreatedAt      time.Time             `json:"created_at"`
	LastAccessedAt time.Time             `json:"last_accessed_at"`
	State          engine.VehicleState   `json:"state"`
	Snapshot       engine.Snapshot       `json:"snapshot"`
	Config         *engine.PhysicsConfig `json:"config"`
	TotalActions   int                   `json:"total_actions"`
}

// ControlResult contains the result of a single control input or tick run
type ControlResult struct {
	Success   bool                `json:"success"`
	Outcome   engine.Outcome      `json:"outcome"`
	Message   string              `json:"message"`
	Error     string              `json:"error,omitempty"` // engine error code when the input was rejected
	Snapshot  engine.Snapshot     `json:"snapshot"`
	State     engine.VehicleState `json:"state"`
	Events    []DrivingEvent      `json:"events,omitempty"`
	Advice    Advice              `json:"advice"`
	Ticks     int                 `json:"ticks,omitempty"`
	Truncated bool                `json:"truncated,omitempty"`

	// Interrupted is set when the caller's context ended partway through a tick run
	Interrupted bool `json:"interrupted,omitempty"`
}

// BulkResult contains the result of a sequence of inputs
type BulkResult struct {
	RequestedInputs int                   `json:"requested_inputs"`
	InputsExecuted  int                   `json:"inputs_executed"`
	Success         bool                  `json:"success"`
	Truncated       bool                  `json:"truncated,omitempty"`
	Limit           int                   `json:"limit,omitempty"`
	StoppedReason   string                `json:"stopped_reason,omitempty"`
	StopReasonCode  string                `json:"stop_reason_code,omitempty"` // stall or an engine error code
	StoppedOnInput  int                   `json:"stopped_on_input,omitempty"` // 1-based
	Steps           []engine.InputOutcome `json:"steps"`
	Events          []DrivingEvent        `json:"events"`

	StartSpeed    float64 `json:"start_speed"`
	EndSpeed      float64 `json:"end_speed"`
	DistanceDelta float64 `json:"distance_delta"`

	Snapshot engine.Snapshot     `json:"snapshot"`
	State    engine.VehicleState `json:"state"`
	Advice   Advice              `json:"advice"`
}

// Advice carries driving hints derived from the current state
type Advice struct {
	RecommendedGear string `json:"recommended_gear"`
	RPMRisk         string `json:"rpm_risk"`
	RPMRiskDetail   string `json:"rpm_risk_detail"`
}

// DrivingEvent represents something notable that happened during an input
type DrivingEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryOptions configures action history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated action history
type HistoryResponse struct {
	Actions      []engine.ActionHistoryEntry `json:"actions"`
	TotalActions int                         `json:"total_actions"`
	Page         int                         `json:"page"`
	PageSize     int                         `json:"page_size"`
	TotalPages   int                         `json:"total_pages"`
	HasNext      bool                        `json:"has_next"`
	HasPrevious  bool                        `json:"has_previous"`

	// SinceReset counts the actions recorded since the last vehicle reset
	SinceReset int                        `json:"since_reset"`
	LastAction *engine.ActionHistoryEntry `json:"last_action,omitempty"`
}

// ConfigInfo provides information about a physics profile
type ConfigInfo struct {
	Filename    string  `json:"filename"`
	ConfigID    string  `json:"config_id"` // The identifier to use for session creation
	Name        string  `json:"name"`      // Display name
	Description string  `json:"description"`
	IdleRPM     float64 `json:"idle_rpm"`
	MaxRPM      float64 `json:"max_rpm"`
}
