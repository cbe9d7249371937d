package engine

import (
	"encoding/json"
	"fmt"
	"os"
)

// PhysicsConfig holds every tunable number of the RPM and speed rules
type PhysicsConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// Engine speed
	IdleRPM            float64 `json:"idle_rpm"`
	ThrottleRPMRange   float64 `json:"throttle_rpm_range"`
	EngagedThrottleRPM float64 `json:"engaged_throttle_rpm"`
	MaxRPM             float64 `json:"max_rpm"`
	StallRPM           float64 `json:"stall_rpm"`
	OverRevRPM         float64 `json:"over_rev_rpm"`
	SpeedRPMScale      float64 `json:"speed_rpm_scale"`
	GearFactorBase     float64 `json:"gear_factor_base"`
	GearFactorDivisor  float64 `json:"gear_factor_divisor"`
	ReverseGearFactor  float64 `json:"reverse_gear_factor"`

	// Pedal thresholds
	ShiftClutchMin   float64 `json:"shift_clutch_min"`
	DisengagedClutch float64 `json:"disengaged_clutch"`
	StallClutchMax   float64 `json:"stall_clutch_max"`
	StallThrottleMax float64 `json:"stall_throttle_max"`
	StallSpeedMax    float64 `json:"stall_speed_max"`

	// Road speed
	PropulsionRPMScale float64 `json:"propulsion_rpm_scale"`
	BrakeForce         float64 `json:"brake_force"`
	BaseResistance     float64 `json:"base_resistance"`
	DragCoefficient    float64 `json:"drag_coefficient"`
	CoastDecay         float64 `json:"coast_decay"`
	DistanceDivisor    float64 `json:"distance_divisor"`
}

// DefaultPhysicsConfig returns the standard profile
func DefaultPhysicsConfig() *PhysicsConfig {
	return &PhysicsConfig{
		Name:        "Standard",
		Description: "Standard manual transmission behaviour",

		IdleRPM:            800,
		ThrottleRPMRange:   6200,
		EngagedThrottleRPM: 3000,
		MaxRPM:             7000,
		StallRPM:           500,
		OverRevRPM:         6500,
		SpeedRPMScale:      50,
		GearFactorBase:     6,
		GearFactorDivisor:  2.5,
		ReverseGearFactor:  0.9,

		ShiftClutchMin:   0.8,
		DisengagedClutch: 0.8,
		StallClutchMax:   0.2,
		StallThrottleMax: 0.2,
		StallSpeedMax:    5,

		PropulsionRPMScale: 1000,
		BrakeForce:         10,
		BaseResistance:     0.05,
		DragCoefficient:    0.01,
		CoastDecay:         0.5,
		DistanceDivisor:    3600,
	}
}

// ValidatePhysicsConfig validates a physics profile for consistency
func ValidatePhysicsConfig(config *PhysicsConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	positive := []struct {
		name  string
		value float64
	}{
		{"idle_rpm", config.IdleRPM},
		{"throttle_rpm_range", config.ThrottleRPMRange},
		{"engaged_throttle_rpm", config.EngagedThrottleRPM},
		{"speed_rpm_scale", config.SpeedRPMScale},
		{"gear_factor_divisor", config.GearFactorDivisor},
		{"reverse_gear_factor", config.ReverseGearFactor},
		{"propulsion_rpm_scale", config.PropulsionRPMScale},
		{"coast_decay", config.CoastDecay},
		{"distance_divisor", config.DistanceDivisor},
	}
	for _, f := range positive {
		if f.value <= 0 {
			return fmt.Errorf("config validation: %s must be positive, got %v", f.name, f.value)
		}
	}

	nonNegative := []struct {
		name  string
		value float64
	}{
		{"stall_rpm", config.StallRPM},
		{"stall_speed_max", config.StallSpeedMax},
		{"brake_force", config.BrakeForce},
		{"base_resistance", config.BaseResistance},
		{"drag_coefficient", config.DragCoefficient},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			return fmt.Errorf("config validation: %s must not be negative, got %v", f.name, f.value)
		}
	}

	pedals := []struct {
		name  string
		value float64
	}{
		{"shift_clutch_min", config.ShiftClutchMin},
		{"disengaged_clutch", config.DisengagedClutch},
		{"stall_clutch_max", config.StallClutchMax},
		{"stall_throttle_max", config.StallThrottleMax},
	}
	for _, f := range pedals {
		if f.value < 0 || f.value > 1 {
			return fmt.Errorf("config validation: %s must be between 0 and 1, got %v", f.name, f.value)
		}
	}

	if config.StallRPM >= config.MaxRPM {
		return fmt.Errorf("config validation: stall_rpm (%v) must be below max_rpm (%v)", config.StallRPM, config.MaxRPM)
	}
	if config.MaxRPM <= config.IdleRPM {
		return fmt.Errorf("config validation: max_rpm (%v) must be above idle_rpm (%v)", config.MaxRPM, config.IdleRPM)
	}
	if config.OverRevRPM <= config.IdleRPM || config.OverRevRPM >= config.MaxRPM {
		return fmt.Errorf("config validation: over_rev_rpm (%v) must be between idle_rpm (%v) and max_rpm (%v)",
			config.OverRevRPM, config.IdleRPM, config.MaxRPM)
	}
	if config.GearFactorBase <= float64(MaxGear) {
		return fmt.Errorf("config validation: gear_factor_base must be greater than %d, got %v", MaxGear, config.GearFactorBase)
	}
	if config.StallClutchMax >= config.ShiftClutchMin {
		return fmt.Errorf("config validation: stall_clutch_max (%v) must be below shift_clutch_min (%v)",
			config.StallClutchMax, config.ShiftClutchMin)
	}

	return nil
}

// LoadPhysicsConfig loads a physics profile from a JSON file
func LoadPhysicsConfig(filename string) (*PhysicsConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParsePhysicsConfig(data)
}

// ParsePhysicsConfig decodes and validates a JSON physics profile
func ParsePhysicsConfig(data []byte) (*PhysicsConfig, error) {
	var config PhysicsConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	if err := ValidatePhysicsConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
