// Package engine provides the vehicle state machine for the manual drive simulator.
//
// The engine package implements the driving mechanics including:
//   - Engine start/stop and stall detection
//   - Clutch, throttle and brake pedal inputs clamped to [0,1]
//   - Gear selection with clutch and engine preconditions
//   - Engine speed (RPM) and road speed update rules
//   - Physics profile loading and validation
//
// Core Types:
//
// The Engine interface defines the main contract for driving operations,
// implemented by Simulator. VehicleState is the raw mutable state, Snapshot
// its formatted read-only projection, and PhysicsConfig holds every tunable
// number of the update rules. Control operations return a Result whose
// Outcome reports stalls and over-rev warnings; rejected inputs return one of
// the sentinel errors (ErrInvalidOperation, ErrEngineOff, ErrInvalidGear,
// ErrClutchNotDisengaged) and leave the state untouched.
//
// Usage:
//
//	sim := engine.NewSimulatorWithDefaults()
//
//	if _, err := sim.ToggleEngine(); err != nil {
//		log.Fatal(err)
//	}
//	sim.SetClutch(1)
//	if _, err := sim.ShiftGear(1); err != nil {
//		log.Fatal(err)
//	}
//	sim.SetThrottle(0.4)
//	sim.SetClutch(0.5)
//	result := sim.Tick(1)
//	fmt.Println(result.Snapshot.Speed, result.Snapshot.RPM)
//
// Driving Rules:
//
// The engine only starts in neutral. Gears change only with the engine
// running and the clutch pressed past the shift threshold. Releasing the
// clutch in gear at low speed without throttle stalls the engine, as does
// letting RPM drop under the stall threshold while in gear. RPM above the
// over-rev threshold produces a warning asking for an upshift. Each tick
// recomputes RPM first and then road speed and distance travelled.
package engine
