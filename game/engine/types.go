package engine

import (
	"fmt"
	"math"
)

// Gear represents the selected gear: -1 reverse, 0 neutral, 1..5 forward
type Gear int

const (
	Reverse Gear = -1
	Neutral Gear = 0
	First   Gear = 1
	Second  Gear = 2
	Third   Gear = 3
	Fourth  Gear = 4
	Fifth   Gear = 5

	MinGear = Reverse
	MaxGear = Fifth

	// Validation constants
	MaxBulkInputs       = 50
	MaxTickCount        = 3600
	WebSocketBufferSize = 256

	// MaxDeltaTime is the longest single tick, in seconds
	MaxDeltaTime = 10.0
)

var gearLabels = map[Gear]string{
	Reverse: "reverse",
	Neutral: "neutral",
	First:   "1st",
	Second:  "2nd",
	Third:   "3rd",
	Fourth:  "4th",
	Fifth:   "5th",
}

var gearShortLabels = map[Gear]string{
	Reverse: "R",
	Neutral: "N",
	First:   "1",
	Second:  "2",
	Third:   "3",
	Fourth:  "4",
	Fifth:   "5",
}

// Valid reports whether g is within [-1,5]
func (g Gear) Valid() bool {
	return g >= MinGear && g <= MaxGear
}

// String returns the long label ("reverse", "neutral", "1st".."5th")
func (g Gear) String() string {
	if label, ok := gearLabels[g]; ok {
		return label
	}
	return fmt.Sprintf("gear(%d)", int(g))
}

// Short returns the dashboard label ("R", "N", "1".."5")
func (g Gear) Short() string {
	if label, ok := gearShortLabels[g]; ok {
		return label
	}
	return "?"
}

// Status is the human-readable condition of the vehicle
type Status string

const (
	StatusStopped         Status = "stopped"
	StatusEngineOnNeutral Status = "engine on, neutral"
	StatusStalled         Status = "stalled"
)

// gearStatus is the status set by a successful shift into g
func gearStatus(g Gear) Status {
	return Status(g.String())
}

// Outcome classifies the result of a control operation or tick
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeStall    Outcome = "stall"
	OutcomeOverRev  Outcome = "over_rev"
	OutcomeRejected Outcome = "rejected"
)

// Action names a control input
type Action string

const (
	ActionToggleEngine Action = "toggle_engine"
	ActionClutch       Action = "clutch"
	ActionShift        Action = "shift"
	ActionThrottle     Action = "throttle"
	ActionBrake        Action = "brake"
	ActionTick         Action = "tick"
	ActionReset        Action = "reset"
)

// VehicleState represents the complete vehicle state
type VehicleState struct {
	EngineOn bool    `json:"engine_on"`
	Clutch   float64 `json:"clutch"`
	Gear     Gear    `json:"gear"`
	Throttle float64 `json:"throttle"`
	Brake    float64 `json:"brake"`
	Speed    float64 `json:"speed"`
	RPM      float64 `json:"rpm"`
	Position float64 `json:"position"`
	Status   Status  `json:"status"`
}

// NewVehicleState returns a vehicle at rest
func NewVehicleState() VehicleState {
	return VehicleState{
		Gear:   Neutral,
		Status: StatusStopped,
	}
}

// Validate checks that every field is within its allowed range
func (vs VehicleState) Validate() error {
	pedals := []struct {
		name  string
		value float64
	}{{"clutch", vs.Clutch}, {"throttle", vs.Throttle}, {"brake", vs.Brake}}
	for _, p := range pedals {
		if p.value < 0 || p.value > 1 || math.IsNaN(p.value) {
			return fmt.Errorf("%w: %s must be between 0 and 1, got %v", ErrInvalidState, p.name, p.value)
		}
	}
	if !vs.Gear.Valid() {
		return fmt.Errorf("%w: gear must be between %d and %d, got %d", ErrInvalidState, MinGear, MaxGear, vs.Gear)
	}
	if vs.Speed < 0 || vs.RPM < 0 || vs.Position < 0 {
		return fmt.Errorf("%w: speed, rpm and position must be non-negative", ErrInvalidState)
	}
	if !vs.EngineOn && vs.RPM != 0 {
		return fmt.Errorf("%w: rpm must be 0 with the engine off, got %v", ErrInvalidState, vs.RPM)
	}
	return nil
}

// Snapshot is the formatted read-only projection of a VehicleState
type Snapshot struct {
	EngineOn bool   `json:"engine_on"`
	Clutch   string `json:"clutch"`
	Gear     string `json:"gear"`
	Throttle string `json:"throttle"`
	Brake    string `json:"brake"`
	Speed    string `json:"speed"`
	RPM      string `json:"rpm"`
	Position string `json:"position"`
	Status   Status `json:"status"`
}

// Snapshot formats the state for display
func (vs VehicleState) Snapshot() Snapshot {
	return Snapshot{
		EngineOn: vs.EngineOn,
		Clutch:   percent(vs.Clutch),
		Gear:     vs.Gear.Short(),
		Throttle: percent(vs.Throttle),
		Brake:    percent(vs.Brake),
		Speed:    fmt.Sprintf("%.1f km/h", vs.Speed),
		RPM:      fmt.Sprintf("%d RPM", int(math.Round(vs.RPM))),
		Position: fmt.Sprintf("%.1f m", vs.Position),
		Status:   vs.Status,
	}
}

func percent(v float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(v*100)))
}

// Result is returned by every control operation and tick
type Result struct {
	Outcome  Outcome  `json:"outcome"`
	Message  string   `json:"message"`
	Snapshot Snapshot `json:"snapshot"`
}

// Stalled reports whether the operation stalled the engine
func (r Result) Stalled() bool {
	return r.Outcome == OutcomeStall
}

// Input is a single named control input, used for bulk runs and scenarios
type Input struct {
	Action    Action  `json:"action" yaml:"action"`
	Value     float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Gear      Gear    `json:"gear,omitempty" yaml:"gear,omitempty"`
	DeltaTime float64 `json:"dt,omitempty" yaml:"dt,omitempty"`
	Count     int     `json:"count,omitempty" yaml:"count,omitempty"`
}

// InputOutcome records how a single input of a bulk run went
type InputOutcome struct {
	Input   Input  `json:"input"`
	Result  Result `json:"result"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ActionHistoryEntry represents a single control input in the history
type ActionHistoryEntry struct {
	Action       Action  `json:"action"`
	Value        float64 `json:"value"`
	Outcome      Outcome `json:"outcome,omitempty"`
	Success      bool    `json:"success"`
	Message      string  `json:"message"`
	Gear         Gear    `json:"gear"`
	RPM          float64 `json:"rpm"`
	Speed        float64 `json:"speed"`
	Timestamp    int64   `json:"timestamp"`
	ActionNumber int     `json:"action_number"`
}
