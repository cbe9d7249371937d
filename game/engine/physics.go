package engine

import (
	"math"
	"time"
)

// clamp01 limits v to [0,1]; NaN is treated as 0
func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// GearFactor relates road speed to engine speed for the given gear
func GearFactor(g Gear, config *PhysicsConfig) float64 {
	if g == Reverse {
		return config.ReverseGearFactor
	}
	return (config.GearFactorBase - float64(g)) / config.GearFactorDivisor
}

// ComputeRPM applies the engine speed rule to vs
func ComputeRPM(vs VehicleState, config *PhysicsConfig) float64 {
	if !vs.EngineOn {
		return 0
	}

	// Drivetrain disengaged: only the throttle matters
	if vs.Gear == Neutral || vs.Clutch > config.DisengagedClutch {
		return config.IdleRPM + vs.Throttle*config.ThrottleRPMRange
	}

	rpm := config.IdleRPM +
		vs.Speed*GearFactor(vs.Gear, config)*config.SpeedRPMScale +
		vs.Throttle*(1-vs.Clutch)*config.EngagedThrottleRPM
	if rpm > config.MaxRPM {
		rpm = config.MaxRPM
	}
	return rpm
}

// AdvanceSpeed applies the road speed rule over dt and returns the new speed and position.
// The rpm in vs must already be up to date.
func AdvanceSpeed(vs VehicleState, config *PhysicsConfig, dt float64) (speed, position float64) {
	if !vs.EngineOn {
		speed = math.Max(0, vs.Speed-config.CoastDecay*dt)
		return speed, vs.Position + speed/config.DistanceDivisor*dt
	}

	propulsion := 0.0
	if vs.Gear != Neutral {
		magnitude := math.Abs(float64(vs.Gear))
		propulsion = vs.Throttle * (1 - vs.Clutch) * (vs.RPM / config.PropulsionRPMScale) / magnitude
	}
	braking := vs.Brake * config.BrakeForce
	resistance := config.BaseResistance + vs.Speed*config.DragCoefficient

	net := propulsion - braking - resistance
	speed = math.Max(0, vs.Speed+net*dt)
	return speed, vs.Position + speed/config.DistanceDivisor*dt
}

// shouldStallOnRelease reports whether letting the clutch out stalls the engine
func (vs *VehicleState) shouldStallOnRelease(config *PhysicsConfig) bool {
	return vs.Clutch < config.StallClutchMax &&
		vs.EngineOn &&
		vs.Gear != Neutral &&
		vs.Throttle < config.StallThrottleMax &&
		vs.Speed < config.StallSpeedMax
}

// stall cuts the engine out
func (vs *VehicleState) stall() {
	vs.EngineOn = false
	vs.RPM = 0
	vs.Status = StatusStalled
}

// updateRPM recomputes rpm from the current inputs
func (vs *VehicleState) updateRPM(config *PhysicsConfig) {
	vs.RPM = ComputeRPM(*vs, config)
}

// updateSpeed recomputes speed and position for one step of length dt
func (vs *VehicleState) updateSpeed(config *PhysicsConfig, dt float64) {
	vs.Speed, vs.Position = AdvanceSpeed(*vs, config, dt)
}

// addActionToHistory appends an entry to both the cumulative and the current history
func (s *Simulator) addActionToHistory(action Action, value float64, outcome Outcome, success bool, message string) {
	entry := ActionHistoryEntry{
		Action:       action,
		Value:        value,
		Outcome:      outcome,
		Success:      success,
		Message:      message,
		Gear:         s.state.Gear,
		RPM:          s.state.RPM,
		Speed:        s.state.Speed,
		Timestamp:    time.Now().Unix(),
		ActionNumber: s.totalActions + 1,
	}
	s.history = append(s.history, entry)
	s.totalActions++

	s.current = append(s.current, entry)
}
