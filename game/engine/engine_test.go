package engine

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// startInGear returns a running simulator in the given gear with the clutch pressed
func startInGear(t *testing.T, gear Gear) *Simulator {
	t.Helper()
	sim := NewSimulatorWithDefaults()
	if _, err := sim.ToggleEngine(); err != nil {
		t.Fatalf("Failed to start engine: %v", err)
	}
	sim.SetClutch(1)
	if _, err := sim.ShiftGear(gear); err != nil {
		t.Fatalf("Failed to shift into %s: %v", gear, err)
	}
	return sim
}

func TestNewSimulator(t *testing.T) {
	sim, err := NewSimulator(DefaultPhysicsConfig())
	if err != nil {
		t.Fatalf("Failed to create simulator: %v", err)
	}

	state := sim.State()
	if state.EngineOn {
		t.Error("Expected engine off initially")
	}
	if state.Gear != Neutral {
		t.Errorf("Expected neutral, got %s", state.Gear)
	}
	if state.Speed != 0 || state.RPM != 0 || state.Position != 0 {
		t.Errorf("Expected vehicle at rest, got speed=%v rpm=%v position=%v", state.Speed, state.RPM, state.Position)
	}
	if state.Status != StatusStopped {
		t.Errorf("Expected status %q, got %q", StatusStopped, state.Status)
	}
}

func TestNewSimulator_InvalidConfig(t *testing.T) {
	config := DefaultPhysicsConfig()
	config.Name = ""

	if _, err := NewSimulator(config); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestToggleEngine(t *testing.T) {
	t.Run("start from neutral idles", func(t *testing.T) {
		sim := NewSimulatorWithDefaults()

		result, err := sim.ToggleEngine()
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		state := sim.State()
		if !state.EngineOn {
			t.Error("Expected engine on")
		}
		if state.RPM != 800 {
			t.Errorf("Expected idle rpm 800, got %v", state.RPM)
		}
		if state.Speed != 0 {
			t.Errorf("Expected speed 0, got %v", state.Speed)
		}
		if state.Status != StatusEngineOnNeutral {
			t.Errorf("Expected status %q, got %q", StatusEngineOnNeutral, state.Status)
		}
		if result.Outcome != OutcomeOK || result.Snapshot.RPM != "800 RPM" {
			t.Errorf("Unexpected result %+v", result)
		}
	})

	t.Run("switch off", func(t *testing.T) {
		sim := NewSimulatorWithDefaults()
		sim.ToggleEngine()

		if _, err := sim.ToggleEngine(); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		state := sim.State()
		if state.EngineOn || state.RPM != 0 {
			t.Errorf("Expected engine off with rpm 0, got on=%v rpm=%v", state.EngineOn, state.RPM)
		}
		if state.Status != StatusStopped {
			t.Errorf("Expected status %q, got %q", StatusStopped, state.Status)
		}
	})

	t.Run("start in gear is rejected", func(t *testing.T) {
		sim := NewSimulatorWithDefaults()
		before := VehicleState{Gear: First, Status: StatusStalled}
		if err := sim.SetState(before); err != nil {
			t.Fatalf("SetState failed: %v", err)
		}

		result, err := sim.ToggleEngine()
		if !errors.Is(err, ErrInvalidOperation) {
			t.Fatalf("Expected ErrInvalidOperation, got %v", err)
		}
		if result.Outcome != OutcomeRejected {
			t.Errorf("Expected rejected outcome, got %s", result.Outcome)
		}
		if sim.State() != before {
			t.Errorf("State changed on rejection: %+v", sim.State())
		}
	})
}

func TestSetClutch_StallOnRelease(t *testing.T) {
	sim := NewSimulatorWithDefaults()
	err := sim.SetState(VehicleState{
		EngineOn: true,
		Clutch:   1.0,
		Gear:     First,
		RPM:      800,
		Status:   gearStatus(First),
	})
	if err != nil {
		t.Fatalf("SetState failed: %v", err)
	}

	result := sim.SetClutch(0)
	if !result.Stalled() {
		t.Fatalf("Expected stall, got %s", result.Outcome)
	}
	state := sim.State()
	if state.EngineOn || state.RPM != 0 {
		t.Errorf("Expected engine off with rpm 0, got on=%v rpm=%v", state.EngineOn, state.RPM)
	}
	if state.Status != StatusStalled {
		t.Errorf("Expected status %q, got %q", StatusStalled, state.Status)
	}
}

func TestSetClutch_NoStallWithThrottle(t *testing.T) {
	sim := startInGear(t, First)
	sim.SetThrottle(0.5)

	result := sim.SetClutch(0)
	if result.Stalled() {
		t.Fatal("Did not expect a stall with throttle applied")
	}
	// 800 + 0*2*50 + 0.5*1*3000
	if got := sim.State().RPM; got != 2300 {
		t.Errorf("Expected rpm 2300, got %v", got)
	}
	if result.Message != "Clutch 0%" {
		t.Errorf("Unexpected message %q", result.Message)
	}
}

func TestInputsAreClamped(t *testing.T) {
	values := []float64{-5, -0.01, 0, 0.3, 1, 1.0001, 42, math.NaN(), math.Inf(1), math.Inf(-1)}

	for _, v := range values {
		sim := NewSimulatorWithDefaults()
		sim.SetClutch(v)
		sim.SetThrottle(v)
		sim.SetBrake(v)

		state := sim.State()
		for name, got := range map[string]float64{"clutch": state.Clutch, "throttle": state.Throttle, "brake": state.Brake} {
			if got < 0 || got > 1 || math.IsNaN(got) {
				t.Errorf("%s(%v) stored %v outside [0,1]", name, v, got)
			}
		}
	}
}

func TestShiftGear_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		state   VehicleState
		gear    Gear
		wantErr error
	}{
		{
			name:    "engine off",
			state:   VehicleState{Clutch: 1, Status: StatusStopped},
			gear:    First,
			wantErr: ErrEngineOff,
		},
		{
			name:    "engine off checked before gear range",
			state:   VehicleState{Clutch: 0, Status: StatusStopped},
			gear:    9,
			wantErr: ErrEngineOff,
		},
		{
			name:    "gear above range",
			state:   VehicleState{EngineOn: true, Clutch: 1, RPM: 800, Status: StatusEngineOnNeutral},
			gear:    6,
			wantErr: ErrInvalidGear,
		},
		{
			name:    "gear below range",
			state:   VehicleState{EngineOn: true, Clutch: 1, RPM: 800, Status: StatusEngineOnNeutral},
			gear:    -2,
			wantErr: ErrInvalidGear,
		},
		{
			name:    "gear range checked before clutch",
			state:   VehicleState{EngineOn: true, Clutch: 0, RPM: 800, Status: StatusEngineOnNeutral},
			gear:    7,
			wantErr: ErrInvalidGear,
		},
		{
			name:    "clutch not pressed",
			state:   VehicleState{EngineOn: true, Clutch: 0.79, RPM: 800, Status: StatusEngineOnNeutral},
			gear:    First,
			wantErr: ErrClutchNotDisengaged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSimulatorWithDefaults()
			if err := sim.SetState(tt.state); err != nil {
				t.Fatalf("SetState failed: %v", err)
			}

			_, err := sim.ShiftGear(tt.gear)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if sim.State() != tt.state {
				t.Errorf("State mutated on failure: got %+v, want %+v", sim.State(), tt.state)
			}
		})
	}
}

func TestShiftGear_Success(t *testing.T) {
	tests := []struct {
		gear   Gear
		status Status
		label  string
	}{
		{Reverse, "reverse", "R"},
		{Neutral, "neutral", "N"},
		{First, "1st", "1"},
		{Second, "2nd", "2"},
		{Third, "3rd", "3"},
		{Fourth, "4th", "4"},
		{Fifth, "5th", "5"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			sim := startInGear(t, tt.gear)

			state := sim.State()
			if state.Gear != tt.gear {
				t.Errorf("Expected gear %d, got %d", tt.gear, state.Gear)
			}
			if state.Status != tt.status {
				t.Errorf("Expected status %q, got %q", tt.status, state.Status)
			}
			if got := sim.Snapshot().Gear; got != tt.label {
				t.Errorf("Expected gear label %q, got %q", tt.label, got)
			}
		})
	}
}

func TestShiftGear_ClutchAtThreshold(t *testing.T) {
	sim := NewSimulatorWithDefaults()
	sim.ToggleEngine()
	sim.SetClutch(0.8)

	if _, err := sim.ShiftGear(First); err != nil {
		t.Errorf("Expected shift with clutch at 80%% to succeed, got %v", err)
	}
}

func TestTick_CoastDown(t *testing.T) {
	sim := NewSimulatorWithDefaults()
	if err := sim.SetState(VehicleState{Speed: 10, Status: StatusStopped}); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}

	sim.Tick(1)
	if got := sim.State().Speed; got != 9.5 {
		t.Fatalf("Expected speed 9.5 after one tick, got %v", got)
	}

	for i := 0; i < 50; i++ {
		sim.Tick(1)
		if got := sim.State().Speed; got < 0 {
			t.Fatalf("Speed went negative: %v", got)
		}
	}
	if got := sim.State().Speed; got != 0 {
		t.Errorf("Expected vehicle to coast to a stop, got %v", got)
	}
}

func TestTick_DefaultDeltaTime(t *testing.T) {
	a := NewSimulatorWithDefaults()
	b := NewSimulatorWithDefaults()
	for _, sim := range []*Simulator{a, b} {
		sim.SetState(VehicleState{Speed: 10, Status: StatusStopped})
	}

	a.Tick(0)
	b.Tick(1)
	if a.State() != b.State() {
		t.Errorf("Tick(0) should behave like Tick(1): %+v vs %+v", a.State(), b.State())
	}
}

func TestTick_ScalesWithDeltaTime(t *testing.T) {
	sim := NewSimulatorWithDefaults()
	sim.SetState(VehicleState{Speed: 10, Status: StatusStopped})

	sim.Tick(0.5)
	if got := sim.State().Speed; got != 9.75 {
		t.Errorf("Expected speed 9.75 after half a tick, got %v", got)
	}
}

func TestTick_DeltaTimeBounds(t *testing.T) {
	huge := []float64{1e308, math.Inf(1), math.Inf(-1), math.NaN()}
	for _, dt := range huge {
		sim := startInGear(t, First)
		sim.SetThrottle(1)
		sim.SetClutch(0)

		sim.Tick(dt)
		sim.Tick(1)
		state := sim.State()
		if math.IsNaN(state.Speed) || math.IsInf(state.Speed, 0) || state.Speed < 0 {
			t.Errorf("Tick(%v): speed %v is not a finite non-negative number", dt, state.Speed)
		}
		if math.IsNaN(state.Position) || math.IsInf(state.Position, 0) || state.Position < 0 {
			t.Errorf("Tick(%v): position %v is not finite", dt, state.Position)
		}
	}

	capped := NewSimulatorWithDefaults()
	exact := NewSimulatorWithDefaults()
	for _, sim := range []*Simulator{capped, exact} {
		sim.SetState(VehicleState{Speed: 100, Status: StatusStopped})
	}
	capped.Tick(1e308)
	exact.Tick(MaxDeltaTime)
	if capped.State() != exact.State() {
		t.Errorf("Expected a long tick to be capped at %v s: %+v vs %+v", MaxDeltaTime, capped.State(), exact.State())
	}

	off := NewSimulatorWithDefaults()
	off.Tick(math.Inf(1))
	if got := off.State().Position; got != 0 {
		t.Errorf("Expected engine-off vehicle at rest to stay put, got position %v", got)
	}
}

func TestApply_RejectsBadDeltaTime(t *testing.T) {
	for _, dt := range []float64{-1, MaxDeltaTime + 1, math.Inf(1), math.NaN()} {
		sim := NewSimulatorWithDefaults()
		sim.SetState(VehicleState{Speed: 10, Status: StatusStopped})

		result, err := sim.Apply(Input{Action: ActionTick, DeltaTime: dt})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("dt %v: expected ErrInvalidInput, got %v", dt, err)
		}
		if result.Outcome != OutcomeRejected {
			t.Errorf("dt %v: expected rejected outcome, got %s", dt, result.Outcome)
		}
		if got := sim.State().Speed; got != 10 {
			t.Errorf("dt %v: expected state untouched, speed %v", dt, got)
		}
	}

	sim := NewSimulatorWithDefaults()
	if _, err := sim.Apply(Input{Action: ActionTick, DeltaTime: MaxDeltaTime}); err != nil {
		t.Errorf("Expected dt %v to be accepted, got %v", MaxDeltaTime, err)
	}
}

func TestTick_FirstStepFromRest(t *testing.T) {
	sim := startInGear(t, First)
	sim.SetThrottle(1)
	sim.SetClutch(0)

	result := sim.Tick(1)
	state := sim.State()

	// rpm: 800 + 0 + 1*1*3000; speed: 3.8 - 0.05 - 0
	if state.RPM != 3800 {
		t.Errorf("Expected rpm 3800, got %v", state.RPM)
	}
	if math.Abs(state.Speed-3.75) > 1e-9 {
		t.Errorf("Expected speed 3.75, got %v", state.Speed)
	}
	if math.Abs(state.Position-3.75/3600) > 1e-12 {
		t.Errorf("Expected position %v, got %v", 3.75/3600, state.Position)
	}
	if result.Outcome != OutcomeOK {
		t.Errorf("Expected ok, got %s", result.Outcome)
	}
}

func TestTick_RPMCapAndOverRev(t *testing.T) {
	sim := startInGear(t, First)
	sim.SetThrottle(1)
	sim.SetClutch(0)

	sawOverRev := false
	for i := 0; i < 200; i++ {
		result := sim.Tick(1)
		if got := sim.State().RPM; got > 7000 {
			t.Fatalf("rpm exceeded cap at tick %d: %v", i, got)
		}
		if result.Outcome == OutcomeOverRev {
			sawOverRev = true
			if !sim.State().EngineOn {
				t.Fatal("Over-rev must not stop the engine")
			}
		}
	}
	if !sawOverRev {
		t.Error("Expected an over-rev warning in first gear at full throttle")
	}
}

func TestTick_LowRPMStall(t *testing.T) {
	config := DefaultPhysicsConfig()
	config.StallRPM = 900

	sim, err := NewSimulator(config)
	if err != nil {
		t.Fatalf("Failed to create simulator: %v", err)
	}
	sim.SetState(VehicleState{EngineOn: true, Gear: Fifth, Clutch: 0.5, RPM: 800, Status: gearStatus(Fifth)})

	result := sim.Tick(1)
	if !result.Stalled() {
		t.Fatalf("Expected stall, got %s", result.Outcome)
	}
	if state := sim.State(); state.EngineOn || state.RPM != 0 || state.Status != StatusStalled {
		t.Errorf("Unexpected state after stall: %+v", state)
	}
}

func TestTick_NeutralNeverStalls(t *testing.T) {
	config := DefaultPhysicsConfig()
	config.StallRPM = 900
	sim, _ := NewSimulator(config)
	sim.ToggleEngine()

	if result := sim.Tick(1); result.Stalled() {
		t.Error("Neutral must not stall on low rpm")
	}
}

func TestPositionMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sim := NewSimulatorWithDefaults()

	last := 0.0
	for i := 0; i < 2000; i++ {
		switch rng.Intn(7) {
		case 0:
			sim.ToggleEngine()
		case 1:
			sim.SetClutch(rng.Float64()*1.4 - 0.2)
		case 2:
			sim.ShiftGear(Gear(rng.Intn(9) - 2))
		case 3:
			sim.SetThrottle(rng.Float64()*1.4 - 0.2)
		case 4:
			sim.SetBrake(rng.Float64() * 0.3)
		default:
			sim.Tick(rng.Float64() * 2)
		}

		state := sim.State()
		if state.Position < last {
			t.Fatalf("Position decreased at step %d: %v -> %v", i, last, state.Position)
		}
		if state.Speed < 0 {
			t.Fatalf("Negative speed at step %d: %v", i, state.Speed)
		}
		if !state.EngineOn && state.RPM != 0 {
			t.Fatalf("rpm %v with engine off at step %d", state.RPM, i)
		}
		if err := state.Validate(); err != nil {
			t.Fatalf("Invalid state at step %d: %v", i, err)
		}
		last = state.Position
	}
}

func TestReset(t *testing.T) {
	sim := startInGear(t, First)
	sim.SetThrottle(0.5)
	sim.Tick(1)

	before := sim.GetTotalActions()
	state := sim.Reset()

	if state != NewVehicleState() {
		t.Errorf("Expected vehicle at rest after reset, got %+v", state)
	}
	if got := len(sim.GetActionHistory()); got != before+1 {
		t.Errorf("Expected cumulative history of %d entries, got %d", before+1, got)
	}
	if got := len(sim.GetCurrentActions()); got != 1 {
		t.Errorf("Expected current segment to hold only the reset, got %d", got)
	}
}

func TestActionHistory(t *testing.T) {
	sim := NewSimulatorWithDefaults()
	if sim.GetLastAction() != nil {
		t.Fatal("Expected no last action initially")
	}

	sim.ToggleEngine()
	sim.ShiftGear(First) // rejected: clutch released

	history := sim.GetActionHistory()
	if len(history) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(history))
	}
	if history[0].Action != ActionToggleEngine || !history[0].Success || history[0].ActionNumber != 1 {
		t.Errorf("Unexpected first entry %+v", history[0])
	}
	last := sim.GetLastAction()
	if last.Action != ActionShift || last.Success || last.Outcome != OutcomeRejected {
		t.Errorf("Unexpected last entry %+v", last)
	}
	if last.ActionNumber != 2 {
		t.Errorf("Expected action number 2, got %d", last.ActionNumber)
	}
}

func TestApplyAll(t *testing.T) {
	t.Run("drive off", func(t *testing.T) {
		sim := NewSimulatorWithDefaults()
		outcomes := sim.ApplyAll([]Input{
			{Action: ActionToggleEngine},
			{Action: ActionClutch, Value: 1},
			{Action: ActionShift, Gear: First},
			{Action: ActionThrottle, Value: 0.4},
			{Action: ActionClutch, Value: 0.3},
			{Action: ActionTick, Count: 5},
		})

		if len(outcomes) != 6 {
			t.Fatalf("Expected 6 outcomes, got %d", len(outcomes))
		}
		for i, o := range outcomes {
			if !o.Success {
				t.Errorf("Input %d failed: %s", i, o.Error)
			}
		}
		if sim.State().Speed <= 0 {
			t.Errorf("Expected the vehicle to move, speed %v", sim.State().Speed)
		}
	})

	t.Run("stops at rejection", func(t *testing.T) {
		sim := NewSimulatorWithDefaults()
		outcomes := sim.ApplyAll([]Input{
			{Action: ActionToggleEngine},
			{Action: ActionShift, Gear: First},
			{Action: ActionThrottle, Value: 1},
		})

		if len(outcomes) != 2 {
			t.Fatalf("Expected 2 outcomes, got %d", len(outcomes))
		}
		if outcomes[1].Success || outcomes[1].Code != CodeClutchNotDisengaged {
			t.Errorf("Expected clutch rejection, got %+v", outcomes[1])
		}
	})

	t.Run("stops at stall", func(t *testing.T) {
		sim := NewSimulatorWithDefaults()
		outcomes := sim.ApplyAll([]Input{
			{Action: ActionToggleEngine},
			{Action: ActionClutch, Value: 1},
			{Action: ActionShift, Gear: First},
			{Action: ActionClutch, Value: 0},
			{Action: ActionThrottle, Value: 1},
		})

		if len(outcomes) != 4 {
			t.Fatalf("Expected 4 outcomes, got %d", len(outcomes))
		}
		if !outcomes[3].Result.Stalled() {
			t.Errorf("Expected stall on clutch release, got %+v", outcomes[3].Result)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		sim := NewSimulatorWithDefaults()
		outcomes := sim.ApplyAll([]Input{{Action: "honk"}})
		if len(outcomes) != 1 || outcomes[0].Code != CodeInvalidInput {
			t.Errorf("Expected invalid input, got %+v", outcomes)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		sim := NewSimulatorWithDefaults()
		inputs := make([]Input, MaxBulkInputs+10)
		for i := range inputs {
			inputs[i] = Input{Action: ActionBrake, Value: 0.1}
		}
		if got := len(sim.ApplyAll(inputs)); got != MaxBulkInputs {
			t.Errorf("Expected %d outcomes, got %d", MaxBulkInputs, got)
		}
	})
}

func TestSetConfig(t *testing.T) {
	sim := startInGear(t, Second)

	config := DefaultPhysicsConfig()
	config.Name = "Other"
	if err := sim.SetConfig(config); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if sim.Config().Name != "Other" {
		t.Errorf("Expected new config, got %q", sim.Config().Name)
	}
	if sim.State() != NewVehicleState() {
		t.Error("Expected SetConfig to reset the vehicle")
	}

	if err := sim.SetConfig(&PhysicsConfig{}); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestSetState_Invalid(t *testing.T) {
	sim := NewSimulatorWithDefaults()
	invalid := []VehicleState{
		{Clutch: 1.5},
		{Throttle: -0.1},
		{Gear: 6},
		{Speed: -1},
		{RPM: 800},
	}
	for _, s := range invalid {
		if err := sim.SetState(s); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Expected ErrInvalidState for %+v, got %v", s, err)
		}
	}
}
