package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/mcp-training/manualdrive/game/engine"
	"github.com/wricardo/mcp-training/manualdrive/game/lessons"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrConfigNotFound       = errors.New("configuration not found")
)

// DrivingService defines all driving-related operations
type DrivingService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error
	SwitchProfile(ctx context.Context, sessionID string, configName string) (*SessionInfo, error)

	// Control Inputs
	ToggleEngine(ctx context.Context, sessionID string) (*ControlResult, error)
	SetClutch(ctx context.Context, sessionID string, value float64) (*ControlResult, error)
	ShiftGear(ctx context.Context, sessionID string, gear engine.Gear) (*ControlResult, error)
	SetThrottle(ctx context.Context, sessionID string, value float64) (*ControlResult, error)
	SetBrake(ctx context.Context, sessionID string, value float64) (*ControlResult, error)
	Tick(ctx context.Context, sessionID string, deltaTime float64, count int) (*ControlResult, error)
	ApplyInputs(ctx context.Context, sessionID string, inputs []engine.Input, reset bool) (*BulkResult, error)
	Reset(ctx context.Context, sessionID string) (*ControlResult, error)

	// Vehicle State
	GetSnapshot(ctx context.Context, sessionID string) (*ControlResult, error)
	GetActionHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Lessons
	GetLesson(ctx context.Context, id int) (*lessons.Lesson, error)
	ListLessons(ctx context.Context) ([]lessons.Summary, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.PhysicsConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.PhysicsConfig) error
	ReloadConfigs(ctx context.Context) ([]*ConfigInfo, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, configID string, config *engine.PhysicsConfig) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// ConfigManager handles physics profile loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.PhysicsConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.PhysicsConfig
	SaveConfig(name string, config *engine.PhysicsConfig) error
	RefreshCache() error
}

// Session represents one learner's vehicle
type Session struct {
	ID             string
	Engine         *engine.Simulator
	Config         *engine.PhysicsConfig
	ConfigID       string
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
