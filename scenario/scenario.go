// Package scenario runs scripted driving drills against a Simulator.
//
// A scenario is a YAML document listing control inputs, each optionally
// followed by expectations on the resulting vehicle state:
//
//	name: pull-away
//	profile: standard
//	steps:
//	  - action: toggle_engine
//	  - action: clutch
//	    value: 1
//	  - action: shift
//	    gear: 1
//	    expect:
//	      status: 1st
//
// Rejected inputs are recorded in the report and the run continues, so a
// drill can assert that an input is refused (expect.error).
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/manualdrive/game/engine"
)

// ErrInvalidScenario is returned for scenarios that parse but cannot run.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a named sequence of inputs.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Profile     string `yaml:"profile,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Step is one input plus the checks applied after it.
type Step struct {
	engine.Input `yaml:",inline"`
	Expect       *Expect `yaml:"expect,omitempty"`
}

// Expect holds optional assertions; unset fields are not checked.
type Expect struct {
	EngineOn *bool          `yaml:"engine_on,omitempty"`
	Gear     *engine.Gear   `yaml:"gear,omitempty"`
	Status   engine.Status  `yaml:"status,omitempty"`
	Outcome  engine.Outcome `yaml:"outcome,omitempty"`
	Error    string         `yaml:"error,omitempty"` // engine error code
	MinSpeed *float64       `yaml:"min_speed,omitempty"`
	MaxSpeed *float64       `yaml:"max_speed,omitempty"`
	MaxRPM   *float64       `yaml:"max_rpm,omitempty"`
}

var knownActions = map[engine.Action]bool{
	engine.ActionToggleEngine: true,
	engine.ActionClutch:       true,
	engine.ActionShift:        true,
	engine.ActionThrottle:     true,
	engine.ActionBrake:        true,
	engine.ActionTick:         true,
	engine.ActionReset:        true,
}

// Parse decodes and validates a scenario. Unknown keys are errors.
func Parse(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidScenario)
		}
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Validate checks the static shape of the scenario.
func (sc *Scenario) Validate() error {
	if strings.TrimSpace(sc.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidScenario)
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScenario)
	}

	for i, step := range sc.Steps {
		n := i + 1
		if !knownActions[step.Action] {
			return fmt.Errorf("%w: step %d: unknown action %q", ErrInvalidScenario, n, step.Action)
		}
		switch step.Action {
		case engine.ActionClutch, engine.ActionThrottle, engine.ActionBrake:
			if step.Value < 0 || step.Value > 1 {
				return fmt.Errorf("%w: step %d: %s value %v outside [0,1]", ErrInvalidScenario, n, step.Action, step.Value)
			}
		case engine.ActionTick:
			if step.Count < 0 || step.Count > engine.MaxTickCount {
				return fmt.Errorf("%w: step %d: tick count %d outside [0,%d]", ErrInvalidScenario, n, step.Count, engine.MaxTickCount)
			}
			if err := engine.CheckDeltaTime(step.DeltaTime); err != nil {
				return fmt.Errorf("%w: step %d: %v", ErrInvalidScenario, n, err)
			}
		}
		if e := step.Expect; e != nil {
			if e.MinSpeed != nil && e.MaxSpeed != nil && *e.MinSpeed > *e.MaxSpeed {
				return fmt.Errorf("%w: step %d: min_speed above max_speed", ErrInvalidScenario, n)
			}
		}
	}
	return nil
}
