package engine

// RecommendedGear returns the forward gear suggested for a road speed:
// 1st up to 20 km/h, 2nd to 40, 3rd to 60, 4th to 80, 5th above.
func RecommendedGear(speed float64) Gear {
	switch {
	case speed <= 20:
		return First
	case speed <= 40:
		return Second
	case speed <= 60:
		return Third
	case speed <= 80:
		return Fourth
	default:
		return Fifth
	}
}

// stallMargin is how close to the stall threshold rpm may get before warning
const stallMargin = 200

// AnalyzeRPMRisk assesses the engine speed against the profile thresholds and the current gear
func AnalyzeRPMRisk(vs VehicleState, config *PhysicsConfig) string {
	if !vs.EngineOn {
		return "OFF: Engine is off"
	}

	if vs.RPM > config.OverRevRPM {
		return "OVER_REV: RPM too high, shift up now!"
	}

	if vs.Gear != Neutral && vs.Clutch <= config.DisengagedClutch && vs.RPM < config.StallRPM+stallMargin {
		return "STALL_RISK: RPM close to stalling, add throttle or press the clutch"
	}

	if vs.Gear > First && vs.Gear > RecommendedGear(vs.Speed) {
		return "LUGGING: Gear too high for current speed, consider downshifting"
	}

	if vs.RPM > config.OverRevRPM-1000 {
		return "HIGH: RPM getting high, prepare to shift up"
	}

	return "OK: RPM in normal range"
}

// RiskLevel returns the code prefix of an AnalyzeRPMRisk string
func RiskLevel(risk string) string {
	for i, r := range risk {
		if r == ':' {
			return risk[:i]
		}
	}
	return risk
}
