package engine

import (
	"fmt"
	"math"
)

// Engine provides the main interface for driving operations
type Engine interface {
	// Vehicle state management
	State() VehicleState
	SetState(state VehicleState) error
	Snapshot() Snapshot
	Reset() VehicleState

	// Control inputs
	ToggleEngine() (Result, error)
	SetClutch(value float64) Result
	ShiftGear(gear Gear) (Result, error)
	SetThrottle(value float64) Result
	SetBrake(value float64) Result

	// Advancement
	Tick(deltaTime float64) Result

	// Bulk inputs
	Apply(input Input) (Result, error)
	ApplyAll(inputs []Input) []InputOutcome

	// Configuration
	Config() *PhysicsConfig
	SetConfig(config *PhysicsConfig) error

	// History
	GetActionHistory() []ActionHistoryEntry
	GetCurrentActions() []ActionHistoryEntry
	GetTotalActions() int
	GetLastAction() *ActionHistoryEntry
}

// Simulator implements the Engine interface. It is not safe for concurrent use;
// callers serialize access.
type Simulator struct {
	state  VehicleState
	config *PhysicsConfig

	history      []ActionHistoryEntry
	current      []ActionHistoryEntry
	totalActions int
}

var _ Engine = (*Simulator)(nil)

// NewSimulator creates a simulator at rest using the provided profile
func NewSimulator(config *PhysicsConfig) (*Simulator, error) {
	if err := ValidatePhysicsConfig(config); err != nil {
		return nil, err
	}

	return &Simulator{
		config:  config,
		state:   NewVehicleState(),
		history: []ActionHistoryEntry{},
		current: []ActionHistoryEntry{},
	}, nil
}

// NewSimulatorWithDefaults creates a simulator using DefaultPhysicsConfig
func NewSimulatorWithDefaults() *Simulator {
	sim, _ := NewSimulator(DefaultPhysicsConfig())
	return sim
}

// State returns a copy of the raw vehicle state
func (s *Simulator) State() VehicleState {
	return s.state
}

// SetState replaces the vehicle state after validating it
func (s *Simulator) SetState(state VehicleState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	s.state = state
	return nil
}

// Snapshot returns the formatted view of the current state
func (s *Simulator) Snapshot() Snapshot {
	return s.state.Snapshot()
}

// Reset re-initializes the vehicle to rest
func (s *Simulator) Reset() VehicleState {
	s.state = NewVehicleState()

	// Cumulative history survives; only the current segment is cleared
	s.current = []ActionHistoryEntry{}
	s.addActionToHistory(ActionReset, 0, OutcomeOK, true, "Vehicle reset")

	return s.state
}

// Config returns the active physics profile
func (s *Simulator) Config() *PhysicsConfig {
	return s.config
}

// SetConfig switches the physics profile and resets the vehicle
func (s *Simulator) SetConfig(config *PhysicsConfig) error {
	if err := ValidatePhysicsConfig(config); err != nil {
		return err
	}

	s.config = config
	s.Reset()
	return nil
}

// ToggleEngine starts the engine from neutral or switches it off
func (s *Simulator) ToggleEngine() (Result, error) {
	vs := &s.state

	switch {
	case vs.EngineOn:
		vs.EngineOn = false
		vs.RPM = 0
		vs.Status = StatusStopped
		return s.ok(ActionToggleEngine, 0, "Engine off"), nil
	case vs.Gear == Neutral:
		vs.EngineOn = true
		vs.RPM = s.config.IdleRPM
		vs.Status = StatusEngineOnNeutral
		return s.ok(ActionToggleEngine, 1, "Engine on"), nil
	default:
		return s.reject(ActionToggleEngine, 1,
			fmt.Errorf("%w: must be in neutral to start engine", ErrInvalidOperation))
	}
}

// SetClutch sets the clutch pedal (0 released, 1 pressed)
func (s *Simulator) SetClutch(value float64) Result {
	vs := &s.state
	vs.Clutch = clamp01(value)

	if vs.shouldStallOnRelease(s.config) {
		vs.stall()
		return s.stalled(ActionClutch, vs.Clutch,
			"Engine stalled! Releasing the clutch too fast without throttle stalls the engine.")
	}

	vs.updateRPM(s.config)
	return s.ok(ActionClutch, vs.Clutch, fmt.Sprintf("Clutch %s", percent(vs.Clutch)))
}

// ShiftGear selects a gear. The engine must be running and the clutch pressed.
func (s *Simulator) ShiftGear(gear Gear) (Result, error) {
	vs := &s.state

	if !vs.EngineOn {
		return s.reject(ActionShift, float64(gear), fmt.Errorf("%w: start the engine first", ErrEngineOff))
	}
	if !gear.Valid() {
		return s.reject(ActionShift, float64(gear),
			fmt.Errorf("%w: %d, use %d (reverse) to %d", ErrInvalidGear, int(gear), MinGear, MaxGear))
	}
	if vs.Clutch < s.config.ShiftClutchMin {
		return s.reject(ActionShift, float64(gear),
			fmt.Errorf("%w: clutch at %s, press it fully before shifting", ErrClutchNotDisengaged, percent(vs.Clutch)))
	}

	vs.Gear = gear
	vs.Status = gearStatus(gear)
	vs.updateRPM(s.config)

	return s.ok(ActionShift, float64(gear), fmt.Sprintf("Shifted to %s", gear)), nil
}

// SetThrottle sets the throttle pedal and updates rpm and speed
func (s *Simulator) SetThrottle(value float64) Result {
	vs := &s.state
	vs.Throttle = clamp01(value)

	vs.updateRPM(s.config)
	vs.updateSpeed(s.config, 1)

	return s.ok(ActionThrottle, vs.Throttle, fmt.Sprintf("Throttle %s", percent(vs.Throttle)))
}

// SetBrake sets the brake pedal and updates speed
func (s *Simulator) SetBrake(value float64) Result {
	vs := &s.state
	vs.Brake = clamp01(value)

	vs.updateSpeed(s.config, 1)

	return s.ok(ActionBrake, vs.Brake, fmt.Sprintf("Brake %s", percent(vs.Brake)))
}

// Tick advances the simulation by deltaTime seconds. A non-positive or
// non-finite deltaTime counts as 1; longer steps are capped at MaxDeltaTime.
// RPM is recomputed before speed so the speed update sees the new rpm.
func (s *Simulator) Tick(deltaTime float64) Result {
	deltaTime = normalizeDeltaTime(deltaTime)
	vs := &s.state

	if vs.EngineOn {
		vs.updateRPM(s.config)
	}
	vs.updateSpeed(s.config, deltaTime)

	if vs.EngineOn && vs.RPM < s.config.StallRPM && vs.Gear != Neutral {
		vs.stall()
		return s.stalled(ActionTick, deltaTime, "Engine stalled! RPM too low.")
	}

	if vs.RPM > s.config.OverRevRPM {
		msg := "WARNING! RPM too high, shift to a higher gear."
		s.addActionToHistory(ActionTick, deltaTime, OutcomeOverRev, true, msg)
		return Result{Outcome: OutcomeOverRev, Message: msg, Snapshot: vs.Snapshot()}
	}

	return s.ok(ActionTick, deltaTime, "")
}

// Apply dispatches a single named input. Tick inputs with Count > 1 tick
// repeatedly (at most MaxTickCount times) and stop early on a stall.
func (s *Simulator) Apply(input Input) (Result, error) {
	switch input.Action {
	case ActionToggleEngine:
		return s.ToggleEngine()
	case ActionClutch:
		return s.SetClutch(input.Value), nil
	case ActionShift:
		return s.ShiftGear(input.Gear)
	case ActionThrottle:
		return s.SetThrottle(input.Value), nil
	case ActionBrake:
		return s.SetBrake(input.Value), nil
	case ActionTick:
		if err := CheckDeltaTime(input.DeltaTime); err != nil {
			return s.reject(ActionTick, 0, err)
		}
		count := input.Count
		if count < 1 {
			count = 1
		}
		if count > MaxTickCount {
			count = MaxTickCount
		}
		var result Result
		for i := 0; i < count; i++ {
			result = s.Tick(input.DeltaTime)
			if result.Stalled() {
				break
			}
		}
		return result, nil
	case ActionReset:
		s.Reset()
		return Result{Outcome: OutcomeOK, Message: "Vehicle reset", Snapshot: s.Snapshot()}, nil
	default:
		return Result{Outcome: OutcomeRejected, Snapshot: s.Snapshot()},
			fmt.Errorf("%w: unknown action %q", ErrInvalidInput, input.Action)
	}
}

// ApplyAll applies inputs in order, stopping after the first rejected input
// or stall. At most MaxBulkInputs inputs are applied.
func (s *Simulator) ApplyAll(inputs []Input) []InputOutcome {
	if len(inputs) > MaxBulkInputs {
		inputs = inputs[:MaxBulkInputs]
	}

	outcomes := make([]InputOutcome, 0, len(inputs))
	for _, input := range inputs {
		result, err := s.Apply(input)
		outcome := InputOutcome{Input: input, Result: result, Success: err == nil}
		if err != nil {
			outcome.Error = err.Error()
			outcome.Code = ErrorCode(err)
		}
		outcomes = append(outcomes, outcome)

		if err != nil || result.Stalled() {
			break
		}
	}

	return outcomes
}

// GetActionHistory returns the cumulative action history
func (s *Simulator) GetActionHistory() []ActionHistoryEntry {
	return s.history
}

// GetCurrentActions returns the actions since the last reset
func (s *Simulator) GetCurrentActions() []ActionHistoryEntry {
	return s.current
}

// GetTotalActions returns the number of recorded actions
func (s *Simulator) GetTotalActions() int {
	return s.totalActions
}

// GetLastAction returns the last recorded action, or nil if none
func (s *Simulator) GetLastAction() *ActionHistoryEntry {
	if len(s.history) == 0 {
		return nil
	}
	return &s.history[len(s.history)-1]
}

// CheckDeltaTime rejects tick lengths that are negative, non-finite or
// longer than MaxDeltaTime. Zero is allowed and means the default step.
func CheckDeltaTime(dt float64) error {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 || dt > MaxDeltaTime {
		return fmt.Errorf("%w: dt must be between 0 and %v seconds, got %v", ErrInvalidInput, MaxDeltaTime, dt)
	}
	return nil
}

func normalizeDeltaTime(dt float64) float64 {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return 1
	}
	return math.Min(dt, MaxDeltaTime)
}

func (s *Simulator) ok(action Action, value float64, msg string) Result {
	s.addActionToHistory(action, value, OutcomeOK, true, msg)
	return Result{Outcome: OutcomeOK, Message: msg, Snapshot: s.state.Snapshot()}
}

func (s *Simulator) stalled(action Action, value float64, msg string) Result {
	s.addActionToHistory(action, value, OutcomeStall, true, msg)
	return Result{Outcome: OutcomeStall, Message: msg, Snapshot: s.state.Snapshot()}
}

func (s *Simulator) reject(action Action, value float64, err error) (Result, error) {
	s.addActionToHistory(action, value, OutcomeRejected, false, err.Error())
	return Result{Outcome: OutcomeRejected, Message: err.Error(), Snapshot: s.state.Snapshot()}, err
}
