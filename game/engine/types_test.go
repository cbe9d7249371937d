package engine

import (
	"encoding/json"
	"testing"
)

func TestValidationConstants(t *testing.T) {
	tests := []struct {
		name     string
		actual   int
		expected int
	}{
		{"MaxBulkInputs", MaxBulkInputs, 50},
		{"MaxTickCount", MaxTickCount, 3600},
		{"WebSocketBufferSize", WebSocketBufferSize, 256},
		{"MinGear", int(MinGear), -1},
		{"MaxGear", int(MaxGear), 5},
	}

	for _, test := range tests {
		if test.actual != test.expected {
			t.Errorf("%s: expected %d, got %d", test.name, test.expected, test.actual)
		}
	}
}

func TestGearLabels(t *testing.T) {
	tests := []struct {
		gear  Gear
		long  string
		short string
		valid bool
	}{
		{Reverse, "reverse", "R", true},
		{Neutral, "neutral", "N", true},
		{First, "1st", "1", true},
		{Fifth, "5th", "5", true},
		{Gear(6), "gear(6)", "?", false},
		{Gear(-2), "gear(-2)", "?", false},
	}

	for _, test := range tests {
		if got := test.gear.String(); got != test.long {
			t.Errorf("Gear(%d).String(): expected %q, got %q", int(test.gear), test.long, got)
		}
		if got := test.gear.Short(); got != test.short {
			t.Errorf("Gear(%d).Short(): expected %q, got %q", int(test.gear), test.short, got)
		}
		if got := test.gear.Valid(); got != test.valid {
			t.Errorf("Gear(%d).Valid(): expected %v, got %v", int(test.gear), test.valid, got)
		}
	}
}

func TestSnapshotFormatting(t *testing.T) {
	state := VehicleState{
		EngineOn: true,
		Clutch:   0.255,
		Gear:     Reverse,
		Throttle: 0.5,
		Brake:    0,
		Speed:    12.34,
		RPM:      2345.6,
		Position: 7.06,
		Status:   "reverse",
	}

	snap := state.Snapshot()
	expected := Snapshot{
		EngineOn: true,
		Clutch:   "26%",
		Gear:     "R",
		Throttle: "50%",
		Brake:    "0%",
		Speed:    "12.3 km/h",
		RPM:      "2346 RPM",
		Position: "7.1 m",
		Status:   "reverse",
	}
	if snap != expected {
		t.Errorf("Snapshot mismatch:\n got %+v\nwant %+v", snap, expected)
	}
}

func TestSnapshotIsPure(t *testing.T) {
	sim := NewSimulatorWithDefaults()
	sim.ToggleEngine()

	before := sim.State()
	history := sim.GetTotalActions()
	sim.Snapshot()
	sim.Snapshot()

	if sim.State() != before {
		t.Error("Snapshot mutated the state")
	}
	if sim.GetTotalActions() != history {
		t.Error("Snapshot recorded history")
	}
}

func TestVehicleStateJSON(t *testing.T) {
	state := VehicleState{EngineOn: true, Gear: Second, RPM: 2000, Status: "2nd"}

	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("Failed to marshal state: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal state: %v", err)
	}
	for _, key := range []string{"engine_on", "clutch", "gear", "throttle", "brake", "speed", "rpm", "position", "status"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Expected key %q in JSON", key)
		}
	}
	if raw["gear"].(float64) != 2 {
		t.Errorf("Expected numeric gear 2, got %v", raw["gear"])
	}
}

func TestInputJSON(t *testing.T) {
	var input Input
	if err := json.Unmarshal([]byte(`{"action":"tick","dt":0.5,"count":3}`), &input); err != nil {
		t.Fatalf("Failed to unmarshal input: %v", err)
	}
	if input.Action != ActionTick || input.DeltaTime != 0.5 || input.Count != 3 {
		t.Errorf("Unexpected input %+v", input)
	}
}
