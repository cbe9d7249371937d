package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/manualdrive/game/engine"
	"github.com/wricardo/mcp-training/manualdrive/game/lessons"
	"github.com/wricardo/mcp-training/manualdrive/game/service"
)

const drivingInstructions = `MANUAL DRIVE SIMULATOR - RULES

CONTROLS:
- Pedals (clutch, throttle, brake) take values from 0 (released) to 1 (fully pressed)
- Gears: -1 reverse, 0 neutral, 1-5 forward
- Time only passes when you call tick; speed and position change on ticks

RULES:
1. The engine can only be started in neutral
2. Shifting needs the engine running and the clutch pressed (at least 80%)
3. Releasing the clutch in gear with almost no throttle at low speed STALLS the engine
4. After a stall the car stays in gear with the engine off, so shifting and starting are both refused:
   call reset_vehicle, then toggle_engine
5. RPM above the over-rev limit is reported as a warning

PULLING AWAY:
1. toggle_engine (in neutral)
2. set_clutch 1
3. shift_gear 1
4. set_throttle 0.3 - 0.5
5. set_clutch 0 (release with throttle applied)
6. tick to move

TIPS:
- Shift up around 20 km/h per gear: 1st below 20, 2nd below 40, 3rd below 60
- Watch the RPM risk in vehicle_state: "stall risk" means add throttle or shift down
- apply_inputs runs a whole sequence and stops at the first mistake
- switch_profile changes the physics profile of a session and resets the vehicle`

func formatSnapshot(s engine.Snapshot) string {
	engineState := "OFF"
	if s.EngineOn {
		engineState = "ON"
	}

	var b strings.Builder
	b.WriteString("Vehicle:\n")
	fmt.Fprintf(&b, "  Engine: %s | Status: %s\n", engineState, s.Status)
	fmt.Fprintf(&b, "  Gear: %s | RPM: %s | Speed: %s\n", s.Gear, s.RPM, s.Speed)
	fmt.Fprintf(&b, "  Clutch: %s | Throttle: %s | Brake: %s\n", s.Clutch, s.Throttle, s.Brake)
	fmt.Fprintf(&b, "  Position: %s\n", s.Position)
	return b.String()
}

func formatAdvice(a service.Advice) string {
	if a.RecommendedGear == "" && a.RPMRisk == "" {
		return ""
	}
	result := fmt.Sprintf("Advice: recommended gear %s, RPM risk %s", a.RecommendedGear, a.RPMRisk)
	if a.RPMRiskDetail != "" {
		result += fmt.Sprintf(" (%s)", a.RPMRiskDetail)
	}
	return result + "\n"
}

func formatEvents(events []service.DrivingEvent) string {
	if len(events) == 0 {
		return ""
	}
	result := "\nEvents:\n"
	for _, e := range events {
		result += fmt.Sprintf("  • [%s] %s\n", e.Type, e.Message)
	}
	return result
}

func formatControlResult(r *service.ControlResult) string {
	var b strings.Builder

	switch {
	case !r.Success:
		fmt.Fprintf(&b, "REFUSED (%s): %s\n\n", r.Error, r.Message)
	case r.Outcome == engine.OutcomeStall:
		fmt.Fprintf(&b, "STALLED: %s\n\n", r.Message)
	case r.Outcome == engine.OutcomeOverRev:
		fmt.Fprintf(&b, "WARNING over-rev: %s\n\n", r.Message)
	default:
		fmt.Fprintf(&b, "%s\n\n", r.Message)
	}

	if r.Ticks > 0 {
		fmt.Fprintf(&b, "Ticks run: %d", r.Ticks)
		if r.Truncated {
			fmt.Fprintf(&b, " (capped at %d)", engine.MaxTickCount)
		}
		b.WriteString("\n")
	}

	b.WriteString(formatSnapshot(r.Snapshot))
	b.WriteString(formatAdvice(r.Advice))
	b.WriteString(formatEvents(r.Events))
	return b.String()
}

func formatBulkResult(r *service.BulkResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Executed %d of %d inputs", r.InputsExecuted, r.RequestedInputs)
	if r.Truncated {
		fmt.Fprintf(&b, " (limited to %d)", r.Limit)
	}
	b.WriteString("\n")

	if r.StoppedReason != "" {
		fmt.Fprintf(&b, "Stopped on input %d [%s]: %s\n", r.StoppedOnInput, r.StopReasonCode, r.StoppedReason)
	}

	fmt.Fprintf(&b, "Speed: %.1f -> %.1f km/h, distance +%.1f m\n\n", r.StartSpeed, r.EndSpeed, r.DistanceDelta)

	for i, step := range r.Steps {
		mark := "✓"
		if !step.Success {
			mark = "✗"
		} else if step.Result.Outcome == engine.OutcomeStall {
			mark = "!"
		}
		fmt.Fprintf(&b, "  %s %d. %s: %s\n", mark, i+1, step.Input.Action, step.Result.Message)
	}
	b.WriteString("\n")

	b.WriteString(formatSnapshot(r.Snapshot))
	b.WriteString(formatAdvice(r.Advice))
	b.WriteString(formatEvents(r.Events))
	return b.String()
}

func formatSessionInfo(s *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", s.ID)
	fmt.Fprintf(&b, "Profile: %s\n", s.ConfigName)
	fmt.Fprintf(&b, "Created: %s\n", s.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Last Accessed: %s\n", s.LastAccessedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Total Actions: %d\n\n", s.TotalActions)
	b.WriteString(formatSnapshot(s.Snapshot))
	return b.String()
}

func formatHistory(h *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Action History (page %d of %d, %d total, %d since last reset):\n", h.Page, h.TotalPages, h.TotalActions, h.SinceReset)
	if h.LastAction != nil {
		fmt.Fprintf(&b, "Last: #%d %s (%s)\n", h.LastAction.ActionNumber, h.LastAction.Action, h.LastAction.Outcome)
	}
	b.WriteString("\n")

	for _, a := range h.Actions {
		status := "✓"
		if !a.Success {
			status = "✗"
		}
		fmt.Fprintf(&b, "%s #%d %s", status, a.ActionNumber, a.Action)
		switch a.Action {
		case engine.ActionClutch, engine.ActionThrottle, engine.ActionBrake:
			fmt.Fprintf(&b, " %.2f", a.Value)
		case engine.ActionShift:
			fmt.Fprintf(&b, " %s", engine.Gear(a.Value).Short())
		}
		fmt.Fprintf(&b, " - %s [gear %s, %.0f RPM, %.1f km/h]\n", a.Message, a.Gear.Short(), a.RPM, a.Speed)
	}

	if h.HasNext {
		b.WriteString("\n(more actions on the next page)\n")
	}
	return b.String()
}

func formatLesson(l *lessons.Lesson) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lesson %d: %s\n\n%s\n\nSteps:\n", l.ID, l.Title, l.Description)
	for i, step := range l.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	if len(l.Tips) > 0 {
		b.WriteString("\nTips:\n")
		for _, tip := range l.Tips {
			fmt.Fprintf(&b, "- %s\n", tip)
		}
	}
	return b.String()
}
