// Package session provides in-memory session management for the driving simulator.
//
// Each session owns an independent engine.Simulator bound to one physics
// profile. Sessions use 4-character hex IDs generated with crypto/rand and
// are looked up case-insensitively. Idle sessions are removed by
// CleanupExpiredSessions, which the server runs on a timer.
//
// Usage:
//
//	manager := session.NewManager(logger)
//
//	sess, err := manager.Create("", "standard", engine.DefaultPhysicsConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err = manager.Get(sess.ID)
package session
