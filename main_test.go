package main

import (
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/manualdrive/api"
	"github.com/wricardo/mcp-training/manualdrive/game/engine"
	"github.com/wricardo/mcp-training/manualdrive/game/session"
	"github.com/wricardo/mcp-training/manualdrive/settings"
	"github.com/wricardo/mcp-training/manualdrive/transport/mcp"
)

func testSettings(t *testing.T) *settings.Settings {
	t.Helper()
	cfg, err := settings.Load()
	if err != nil {
		t.Fatalf("Failed to load default settings: %v", err)
	}
	return cfg
}

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "Manual Drive Simulator Server" {
		t.Errorf("Unexpected app name %s", AppName)
	}
}

func TestFlagDefaults(t *testing.T) {
	if *port <= 0 || *port > 65535 {
		t.Errorf("Invalid default port: %d", *port)
	}
	if *host == "" {
		t.Error("Host should have a default value")
	}
	if *configDir == "" {
		t.Error("Config directory should have a default value")
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := testSettings(t)

	// Nothing set on the command line: settings win
	applyFlags(cfg)
	if cfg.Port != 8080 || cfg.Host != "" || cfg.LogLevel != "info" {
		t.Errorf("Settings should be untouched, got %+v", cfg)
	}

	for name, value := range map[string]string{"port": "9191", "config-dir": "profiles", "debug": "true", "ngrok-domain": "drive.example.dev"} {
		if err := flag.Set(name, value); err != nil {
			t.Fatalf("Failed to set flag %s: %v", name, err)
		}
	}
	t.Cleanup(func() {
		flag.Set("port", "8080")
		flag.Set("config-dir", "configs")
		flag.Set("debug", "false")
		flag.Set("ngrok-domain", "")
	})

	applyFlags(cfg)
	if cfg.Port != 9191 {
		t.Errorf("Expected port 9191, got %d", cfg.Port)
	}
	if cfg.ConfigDir != "profiles" {
		t.Errorf("Expected config dir profiles, got %s", cfg.ConfigDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected debug log level, got %s", cfg.LogLevel)
	}
	if cfg.Ngrok.Domain != "drive.example.dev" || cfg.Ngrok.Enabled {
		t.Errorf("Unexpected ngrok settings %+v", cfg.Ngrok)
	}
}

func TestInitializeServices(t *testing.T) {
	cfg := testSettings(t)

	drivingService, sessions, err := initializeServices(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	if drivingService == nil || sessions == nil {
		t.Fatal("Expected driving service and session manager")
	}

	info, err := drivingService.CreateSession(context.Background(), "sport")
	if err != nil {
		t.Fatalf("Failed to create session with shipped profile: %v", err)
	}
	if sessions.Count() != 1 || info.ConfigName != "sport" {
		t.Errorf("Expected one sport session, got %d sessions, profile %q", sessions.Count(), info.ConfigName)
	}
}

func TestInitializeServices_DefaultProfile(t *testing.T) {
	cfg := testSettings(t)
	cfg.DefaultProfile = "forgiving"

	drivingService, _, err := initializeServices(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	info, err := drivingService.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if info.ConfigName != "forgiving" || info.Config.Name != "Forgiving" {
		t.Errorf("Expected sessions to default to forgiving, got %q", info.ConfigName)
	}

	cfg.DefaultProfile = "turbo"
	if _, _, err := initializeServices(cfg, zerolog.Nop()); err == nil {
		t.Error("Expected error for an unknown default profile")
	}
}

func TestInitializeServices_InvalidConfigDir(t *testing.T) {
	cfg := testSettings(t)
	cfg.ConfigDir = "/non/existent/path"

	if _, _, err := initializeServices(cfg, zerolog.Nop()); err == nil {
		t.Error("Expected error for non-existent config directory")
	}
}

func TestSessionCleanupRoutine(t *testing.T) {
	manager := session.NewManager(zerolog.Nop())
	if _, err := manager.Create("", "standard", engine.DefaultPhysicsConfig()); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sessionCleanupRoutine(ctx, manager, time.Nanosecond, 5*time.Millisecond, zerolog.Nop())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for manager.Count() > 0 {
		select {
		case <-deadline:
			t.Fatal("Expired session was not cleaned up")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Cleanup routine did not stop after cancellation")
	}
}

func TestNewLogger(t *testing.T) {
	var buf strings.Builder
	cfg := testSettings(t)
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	logger := newLogger(cfg, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"message":"shown"`) {
		t.Errorf("Unexpected log output %q", out)
	}
}

func TestLoopbackAddr(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"", "localhost:8080"},
		{"0.0.0.0", "localhost:8080"},
		{"127.0.0.1", "127.0.0.1:8080"},
		{"::", "localhost:8080"},
	}
	for _, tt := range tests {
		cfg := &settings.Settings{Host: tt.host, Port: 8080}
		if got := loopbackAddr(cfg); got != tt.want {
			t.Errorf("loopbackAddr(%q) = %s, want %s", tt.host, got, tt.want)
		}
	}
}

func TestMCPHandler(t *testing.T) {
	handler := mcpHandler(mcp.NewClient("http://localhost:8080").GetMCPServer())

	t.Run("method not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/mcp", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", w.Code)
		}
	})

	t.Run("tools list", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
		handler(w, httptest.NewRequest(http.MethodPost, "/mcp", body))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		for _, tool := range []string{"create_session", "shift_gear", "apply_inputs", "switch_profile", "driving_instructions"} {
			if !strings.Contains(w.Body.String(), `"`+tool+`"`) {
				t.Errorf("Expected tool %s in %s", tool, w.Body.String())
			}
		}
	})
}

func TestInternalServer(t *testing.T) {
	cfg := testSettings(t)
	drivingService, _, err := initializeServices(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	baseURL, httpServer, err := startInternalServer(ctx, drivingService, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to start internal server: %v", err)
	}
	defer httpServer.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !externalAPIAvailable(baseURL) {
		if time.Now().After(deadline) {
			t.Fatal("Internal server never became healthy")
		}
		time.Sleep(10 * time.Millisecond)
	}

	httpServer.Close()
	if externalAPIAvailable(baseURL) {
		t.Error("Closed server should not be reported as available")
	}
}

func TestNewRouter(t *testing.T) {
	cfg := testSettings(t)
	drivingService, _, err := initializeServices(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	router := newRouter(api.NewServer(drivingService, nil, zerolog.Nop()), mcp.NewClient("http://localhost:8080"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected /healthz to be served by the API, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected /mcp to reject GET, got %d", w.Code)
	}
}
