// Package config provides physics profile management for the manual drive simulator.
//
// The config package handles:
//   - Loading physics profiles from JSON files
//   - Schema and consistency validation
//   - Default profile management
//   - Profile discovery and listing
//
// Profile Format:
//
// Profiles are stored as JSON files in the configs directory. Each profile
// carries every number used by the RPM and road speed rules (idle and
// maximum RPM, stall and over-rev thresholds, pedal thresholds, gear
// factors, braking and drag). Files are first checked against an embedded
// JSON schema and then with engine.ValidatePhysicsConfig.
//
// Available Profiles:
//   - standard: the reference behaviour, used by default
//   - forgiving: harder to stall, for first lessons
//   - sport: higher rev limit and stronger throttle response
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := manager.LoadConfig("forgiving")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sim, err := engine.NewSimulator(profile)
package config
