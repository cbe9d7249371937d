package scenario

import (
	"fmt"

	"github.com/wricardo/mcp-training/manualdrive/game/engine"
)

// StepReport is what happened on one step.
type StepReport struct {
	Index    int                 `json:"index"` // 1-based
	Input    engine.Input        `json:"input"`
	Outcome  engine.Outcome      `json:"outcome"`
	Message  string              `json:"message"`
	Code     string              `json:"code,omitempty"`
	State    engine.VehicleState `json:"state"`
	Failures []string            `json:"failures,omitempty"`
}

// Report is the result of a scenario run.
type Report struct {
	Name    string       `json:"name"`
	Profile string       `json:"profile,omitempty"`
	Steps   []StepReport `json:"steps"`
	Stalls  int          `json:"stalls"`
	Refused int          `json:"refused"`
}

// Passed reports whether every expectation held.
func (r *Report) Passed() bool {
	return len(r.Failures()) == 0
}

// Failures lists every failed expectation prefixed with its step number.
func (r *Report) Failures() []string {
	var out []string
	for _, s := range r.Steps {
		for _, f := range s.Failures {
			out = append(out, fmt.Sprintf("step %d (%s): %s", s.Index, s.Input.Action, f))
		}
	}
	return out
}

// Run applies every step to sim in order and checks expectations.
// The optional observe callback sees each StepReport as soon as it is built.
func Run(sim *engine.Simulator, sc *Scenario, observe func(StepReport) error) (*Report, error) {
	report := &Report{Name: sc.Name, Profile: sc.Profile, Steps: make([]StepReport, 0, len(sc.Steps))}

	for i, step := range sc.Steps {
		result, err := sim.Apply(step.Input)
		sr := StepReport{
			Index:   i + 1,
			Input:   step.Input,
			Outcome: result.Outcome,
			Message: result.Message,
			State:   sim.State(),
		}
		if err != nil {
			if !engine.IsRejection(err) {
				return report, fmt.Errorf("step %d: %w", sr.Index, err)
			}
			sr.Outcome = engine.OutcomeRejected
			sr.Message = err.Error()
			sr.Code = engine.ErrorCode(err)
			report.Refused++
		}
		if sr.Outcome == engine.OutcomeStall {
			report.Stalls++
		}

		sr.Failures = check(step.Expect, sr)
		report.Steps = append(report.Steps, sr)

		if observe != nil {
			if err := observe(sr); err != nil {
				return report, err
			}
		}
	}

	return report, nil
}

func check(e *Expect, sr StepReport) []string {
	if e == nil {
		e = &Expect{}
	}

	var failures []string
	fail := func(format string, args ...interface{}) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	vs := sr.State
	if e.EngineOn != nil && vs.EngineOn != *e.EngineOn {
		fail("engine_on: want %v, got %v", *e.EngineOn, vs.EngineOn)
	}
	if e.Gear != nil && vs.Gear != *e.Gear {
		fail("gear: want %s, got %s", e.Gear.Short(), vs.Gear.Short())
	}
	if e.Status != "" && vs.Status != e.Status {
		fail("status: want %q, got %q", e.Status, vs.Status)
	}
	if e.Outcome != "" && sr.Outcome != e.Outcome {
		fail("outcome: want %s, got %s", e.Outcome, sr.Outcome)
	}
	if e.Error != "" && sr.Code != e.Error {
		fail("error: want %s, got %q", e.Error, sr.Code)
	}
	if e.MinSpeed != nil && vs.Speed < *e.MinSpeed {
		fail("speed: want >= %.1f, got %.1f", *e.MinSpeed, vs.Speed)
	}
	if e.MaxSpeed != nil && vs.Speed > *e.MaxSpeed {
		fail("speed: want <= %.1f, got %.1f", *e.MaxSpeed, vs.Speed)
	}
	if e.MaxRPM != nil && vs.RPM > *e.MaxRPM {
		fail("rpm: want <= %.0f, got %.0f", *e.MaxRPM, vs.RPM)
	}

	// An unexpected refusal fails the step even without an explicit check.
	if sr.Code != "" && e.Error == "" && e.Outcome != engine.OutcomeRejected {
		fail("unexpected refusal: %s", sr.Message)
	}
	return failures
}
