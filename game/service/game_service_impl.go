package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/manualdrive/game/engine"
	"github.com/wricardo/mcp-training/manualdrive/game/lessons"
)

// History pagination defaults
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// drivingServiceImpl implements the DrivingService interface
type drivingServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	logger   zerolog.Logger

	// mu serializes every access to session state, including the
	// timestamps the session manager updates
	mu sync.Mutex
}

// NewDrivingService creates a new driving service instance
func NewDrivingService(sessions SessionManager, configs ConfigManager, logger zerolog.Logger) DrivingService {
	return &drivingServiceImpl{
		sessions: sessions,
		configs:  configs,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// CreateSession creates a new driving session on the named profile (default when empty)
func (s *drivingServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	configName = strings.TrimSuffix(configName, ".json")

	var config *engine.PhysicsConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("%w: '%s', available configs: %s", ErrConfigNotFound, configName, strings.Join(configIDs, ", "))
				}
				return nil, fmt.Errorf("%w: '%s', use /api/configs to list available configurations", ErrConfigNotFound, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
		configName = s.getConfigID(config.Name)
	}

	session, err := s.sessions.Create("", configName, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info().Str("session", session.ID).Str("profile", configName).Msg("session created")
	return sessionInfo(session), nil
}

// GetSession retrieves session information
func (s *drivingServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return sessionInfo(session), nil
}

// ListSessions returns all active sessions
func (s *drivingServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *drivingServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("session not found: %w", err)
	}
	s.logger.Info().Str("session", sessionID).Msg("session deleted")
	return nil
}

// SwitchProfile moves a session onto another physics profile. The vehicle is reset.
func (s *drivingServiceImpl) SwitchProfile(ctx context.Context, sessionID string, configName string) (*SessionInfo, error) {
	configName = strings.TrimSuffix(configName, ".json")
	config, err := s.configs.LoadConfig(configName)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrConfigNotFound, configName)
		}
		return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	if err := sess.Engine.SetConfig(config); err != nil {
		return nil, err
	}
	sess.Config = config
	sess.ConfigID = configName
	s.sessions.UpdateLastAccessed(sessionID)

	s.logger.Info().Str("session", sessionID).Str("profile", configName).Msg("profile switched")
	return sessionInfo(sess), nil
}

// ToggleEngine starts or stops the engine
func (s *drivingServiceImpl) ToggleEngine(ctx context.Context, sessionID string) (*ControlResult, error) {
	return s.control(sessionID, engine.ActionToggleEngine, func(sim *engine.Simulator) (engine.Result, error) {
		return sim.ToggleEngine()
	})
}

// SetClutch sets the clutch pedal
func (s *drivingServiceImpl) SetClutch(ctx context.Context, sessionID string, value float64) (*ControlResult, error) {
	return s.control(sessionID, engine.ActionClutch, func(sim *engine.Simulator) (engine.Result, error) {
		return sim.SetClutch(value), nil
	})
}

// ShiftGear selects a gear
func (s *drivingServiceImpl) ShiftGear(ctx context.Context, sessionID string, gear engine.Gear) (*ControlResult, error) {
	return s.control(sessionID, engine.ActionShift, func(sim *engine.Simulator) (engine.Result, error) {
		return sim.ShiftGear(gear)
	})
}

// SetThrottle sets the throttle pedal
func (s *drivingServiceImpl) SetThrottle(ctx context.Context, sessionID string, value float64) (*ControlResult, error) {
	return s.control(sessionID, engine.ActionThrottle, func(sim *engine.Simulator) (engine.Result, error) {
		return sim.SetThrottle(value), nil
	})
}

// SetBrake sets the brake pedal
func (s *drivingServiceImpl) SetBrake(ctx context.Context, sessionID string, value float64) (*ControlResult, error) {
	return s.control(sessionID, engine.ActionBrake, func(sim *engine.Simulator) (engine.Result, error) {
		return sim.SetBrake(value), nil
	})
}

// Tick advances the simulation count times by deltaTime seconds each.
// The run stops early when the engine stalls.
func (s *drivingServiceImpl) Tick(ctx context.Context, sessionID string, deltaTime float64, count int) (*ControlResult, error) {
	if err := engine.CheckDeltaTime(deltaTime); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	truncated := false
	if count < 1 {
		count = 1
	}
	if count > engine.MaxTickCount {
		count = engine.MaxTickCount
		truncated = true
	}

	var events []DrivingEvent
	var result engine.Result
	overRevReported := false
	interrupted := false
	ticks := 0
	for ticks < count {
		if err := ctx.Err(); err != nil {
			if ticks == 0 {
				return nil, err
			}
			interrupted = true
			break
		}
		result = sess.Engine.Tick(deltaTime)
		ticks++

		if result.Outcome == engine.OutcomeOverRev {
			if !overRevReported {
				events = append(events, newEvent(EventOverRev, result.Message))
				overRevReported = true
			}
			continue
		}
		if result.Stalled() {
			events = append(events, newEvent(EventStall, result.Message))
			break
		}
	}

	out := s.buildResult(sess, result, nil, events)
	out.Ticks = ticks
	out.Truncated = truncated
	out.Interrupted = interrupted
	return out, nil
}

// ApplyInputs applies a sequence of inputs, stopping at the first rejected input or stall
func (s *drivingServiceImpl) ApplyInputs(ctx context.Context, sessionID string, inputs []engine.Input, reset bool) (*BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	result := &BulkResult{
		RequestedInputs: len(inputs),
		Success:         true,
		Events:          make([]DrivingEvent, 0),
	}

	if reset {
		sess.Engine.Reset()
		result.Events = append(result.Events, newEvent(EventReset, "Vehicle reset to initial state"))
	}

	if len(inputs) > engine.MaxBulkInputs {
		result.Truncated = true
		result.Limit = engine.MaxBulkInputs
		inputs = inputs[:engine.MaxBulkInputs]
	}

	start := sess.Engine.State()
	result.StartSpeed = start.Speed

	steps := sess.Engine.ApplyAll(inputs)
	result.Steps = steps

	for i, step := range steps {
		if !step.Success {
			result.Success = false
			result.StoppedReason = fmt.Sprintf("input %d rejected: %s", i+1, step.Error)
			result.StopReasonCode = step.Code
			result.StoppedOnInput = i + 1
			break
		}
		result.InputsExecuted++
		result.Events = append(result.Events, eventsFor(step.Input.Action, step.Result)...)
		if step.Result.Stalled() {
			result.StoppedReason = fmt.Sprintf("input %d stalled the engine", i+1)
			result.StopReasonCode = string(engine.OutcomeStall)
			result.StoppedOnInput = i + 1
			break
		}
	}

	end := sess.Engine.State()
	result.EndSpeed = end.Speed
	result.DistanceDelta = end.Position - start.Position
	result.State = end
	result.Snapshot = end.Snapshot()
	result.Advice = advise(end, sess.Config)

	s.logger.Debug().
		Str("session", sessionID).
		Int("requested", result.RequestedInputs).
		Int("executed", result.InputsExecuted).
		Str("stop_reason", result.StopReasonCode).
		Msg("applied inputs")

	return result, nil
}

// Reset returns the session vehicle to its initial state
func (s *drivingServiceImpl) Reset(ctx context.Context, sessionID string) (*ControlResult, error) {
	return s.control(sessionID, engine.ActionReset, func(sim *engine.Simulator) (engine.Result, error) {
		return sim.Apply(engine.Input{Action: engine.ActionReset})
	})
}

// GetSnapshot returns the current vehicle state without changing it
func (s *drivingServiceImpl) GetSnapshot(ctx context.Context, sessionID string) (*ControlResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	state := sess.Engine.State()
	return &ControlResult{
		Success:  true,
		Outcome:  engine.OutcomeOK,
		Message:  string(state.Status),
		Snapshot: state.Snapshot(),
		State:    state,
		Advice:   advise(state, sess.Config),
	}, nil
}

// GetActionHistory returns paginated action history
func (s *drivingServiceImpl) GetActionHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	history := sess.Engine.GetActionHistory()
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultHistoryLimit
	}
	if opts.Limit > maxHistoryLimit {
		opts.Limit = maxHistoryLimit
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	actions := []engine.ActionHistoryEntry{}
	if start < total {
		if opts.Order == "desc" {
			for i := total - 1 - start; i >= total-end; i-- {
				actions = append(actions, history[i])
			}
		} else {
			actions = append(actions, history[start:end]...)
		}
	}

	var last *engine.ActionHistoryEntry
	if entry := sess.Engine.GetLastAction(); entry != nil {
		copied := *entry
		last = &copied
	}

	return &HistoryResponse{
		Actions:      actions,
		TotalActions: total,
		Page:         opts.Page,
		PageSize:     opts.Limit,
		TotalPages:   totalPages,
		HasNext:      opts.Page < totalPages,
		HasPrevious:  opts.Page > 1,
		SinceReset:   len(sess.Engine.GetCurrentActions()),
		LastAction:   last,
	}, nil
}

// GetLesson returns a lesson from the embedded catalog
func (s *drivingServiceImpl) GetLesson(ctx context.Context, id int) (*lessons.Lesson, error) {
	lesson, err := lessons.Get(id)
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ListLessons summarizes the embedded lesson catalog
func (s *drivingServiceImpl) ListLessons(ctx context.Context) ([]lessons.Summary, error) {
	return lessons.List(), nil
}

// ListConfigs returns available physics profiles
func (s *drivingServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific physics profile
func (s *drivingServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.PhysicsConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a physics profile to disk
func (s *drivingServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.PhysicsConfig) error {
	return s.configs.SaveConfig(configName, config)
}

// ReloadConfigs drops cached profiles and rereads the profile directory.
// Running sessions keep the profile they were created with.
func (s *drivingServiceImpl) ReloadConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	if err := s.configs.RefreshCache(); err != nil {
		return nil, fmt.Errorf("failed to reload configs: %w", err)
	}
	configs, err := s.configs.ListConfigs()
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("profiles", len(configs)).Msg("profiles reloaded")
	return configs, nil
}

// control runs a single engine operation under the service lock.
// Rejected inputs are reported in the result, not as errors.
func (s *drivingServiceImpl) control(sessionID string, action engine.Action, op func(*engine.Simulator) (engine.Result, error)) (*ControlResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	before := sess.Engine.State()
	result, opErr := op(sess.Engine)
	if opErr != nil && !engine.IsRejection(opErr) {
		return nil, opErr
	}

	var events []DrivingEvent
	if opErr == nil {
		events = transitionEvents(action, before, sess.Engine.State(), result)
	}
	return s.buildResult(sess, result, opErr, events), nil
}

func (s *drivingServiceImpl) buildResult(sess *Session, result engine.Result, opErr error, events []DrivingEvent) *ControlResult {
	state := sess.Engine.State()
	out := &ControlResult{
		Success:  opErr == nil,
		Outcome:  result.Outcome,
		Message:  result.Message,
		Snapshot: state.Snapshot(),
		State:    state,
		Events:   events,
		Advice:   advise(state, sess.Config),
	}
	if opErr != nil {
		out.Outcome = engine.OutcomeRejected
		out.Error = engine.ErrorCode(opErr)
	}
	return out
}

// getConfigID returns the profile id for a display name
func (s *drivingServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

func sessionInfo(sess *Session) *SessionInfo {
	state := sess.Engine.State()
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     sess.ConfigID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		State:          state,
		Snapshot:       state.Snapshot(),
		Config:         sess.Config,
		TotalActions:   sess.Engine.GetTotalActions(),
	}
}

// transitionEvents derives events by comparing the state before and after an input
func transitionEvents(action engine.Action, before, after engine.VehicleState, result engine.Result) []DrivingEvent {
	if action == engine.ActionReset {
		return []DrivingEvent{newEvent(EventReset, result.Message)}
	}

	var events []DrivingEvent
	if !before.EngineOn && after.EngineOn {
		events = append(events, newEvent(EventEngineOn, result.Message))
	}
	if before.EngineOn && !after.EngineOn && !result.Stalled() {
		events = append(events, newEvent(EventEngineOff, result.Message))
	}
	if before.Gear != after.Gear && after.EngineOn {
		events = append(events, newEvent(EventShift, fmt.Sprintf("Shifted to %s", after.Gear)))
	}
	switch result.Outcome {
	case engine.OutcomeStall:
		events = append(events, newEvent(EventStall, result.Message))
	case engine.OutcomeOverRev:
		events = append(events, newEvent(EventOverRev, result.Message))
	}
	return events
}

// eventsFor derives events for one step of a bulk run
func eventsFor(action engine.Action, result engine.Result) []DrivingEvent {
	var events []DrivingEvent
	switch action {
	case engine.ActionToggleEngine:
		if result.Snapshot.EngineOn {
			events = append(events, newEvent(EventEngineOn, result.Message))
		} else {
			events = append(events, newEvent(EventEngineOff, result.Message))
		}
	case engine.ActionShift:
		events = append(events, newEvent(EventShift, result.Message))
	case engine.ActionReset:
		events = append(events, newEvent(EventReset, result.Message))
	}
	switch result.Outcome {
	case engine.OutcomeStall:
		events = append(events, newEvent(EventStall, result.Message))
	case engine.OutcomeOverRev:
		events = append(events, newEvent(EventOverRev, result.Message))
	}
	return events
}

func newEvent(eventType, message string) DrivingEvent {
	return DrivingEvent{Type: eventType, Message: message, Timestamp: time.Now()}
}

func advise(state engine.VehicleState, config *engine.PhysicsConfig) Advice {
	risk := engine.AnalyzeRPMRisk(state, config)
	return Advice{
		RecommendedGear: engine.RecommendedGear(state.Speed).Short(),
		RPMRisk:         engine.RiskLevel(risk),
		RPMRiskDetail:   risk,
	}
}
