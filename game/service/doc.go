// Package service provides the business logic layer for the manual transmission driving simulator.
//
// The service package implements:
//   - Multi-session vehicle management
//   - Physics profile loading through a ConfigManager
//   - Control input processing (single inputs, tick runs and input sequences)
//   - Driving advice and event extraction
//   - Paginated action history
//
// Core Interfaces:
//
// DrivingService is the main service interface used by every transport.
// SessionManager stores sessions and their simulators.
// ConfigManager loads and validates physics profiles.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the engine. Each session owns an independent engine.Simulator; a single
// service mutex serializes mutation so a session never sees interleaved inputs.
// Rejected inputs (engine off, invalid gear, clutch not pressed) are not Go
// errors: they come back as a ControlResult with Success false and an error code.
//
// Usage:
//
//	sessionMgr := session.NewManager(logger)
//	configMgr, _ := config.NewManager("configs", logger)
//	svc := service.NewDrivingService(sessionMgr, configMgr, logger)
//
//	info, err := svc.CreateSession(ctx, "standard")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	svc.ToggleEngine(ctx, info.ID)
//	svc.SetClutch(ctx, info.ID, 1)
//	res, _ := svc.ShiftGear(ctx, info.ID, engine.First)
package service
