package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hireops/internal/types"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	stages, err := cfg.Board.StageList()
	require.NoError(t, err)
	assert.Equal(t, types.KanbanStatuses, stages)
	assert.Equal(t, RoutePatchStatus, cfg.API.StatusRoute)
	assert.Equal(t, 30*time.Second, cfg.Board.RefreshInterval)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	content := `
api:
  base_url: https://ats.example.com/api
  timeout: 5s
  status_route: put
board:
  stages: [applied, screening, interview, offer, hired, rejected]
  in_flight_policy: reject
log:
  level: debug
`
	path := filepath.Join(t.TempDir(), "hireops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "https://ats.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, RoutePut, cfg.API.StatusRoute)
	assert.Equal(t, PolicyReject, cfg.Board.InFlightPolicy)
	assert.Equal(t, 100, cfg.API.PageSize, "unset values keep defaults")

	stages, err := cfg.Board.StageList()
	require.NoError(t, err)
	assert.Equal(t, types.AllStatuses, stages)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HIREOPS_API_BASE_URL", "http://127.0.0.1:9999/api")
	t.Setenv("HIREOPS_BOARD_IN_FLIGHT_POLICY", "reject")
	t.Setenv("DATABASE_URL", "postgres://localhost/hireops")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9999/api", cfg.API.BaseURL)
	assert.Equal(t, PolicyReject, cfg.Board.InFlightPolicy)
	assert.Equal(t, "postgres://localhost/hireops", cfg.DevServer.DatabaseURL)
}

func TestNewViper_MissingExplicitFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"relative base url", func(c *Config) { c.API.BaseURL = "/api" }, "api.base_url"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"page size", func(c *Config) { c.API.PageSize = 0 }, "api.page_size"},
		{"route", func(c *Config) { c.API.StatusRoute = "post" }, "api.status_route"},
		{"unknown stage", func(c *Config) { c.Board.Stages = []string{"applied", "withdrawn"} }, "board.stages"},
		{"policy", func(c *Config) { c.Board.InFlightPolicy = "drop" }, "in_flight_policy"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"ttl", func(c *Config) { c.DevServer.TokenTTLHours = 0 }, "token_ttl_hours"},
		{"bcrypt", func(c *Config) { c.DevServer.BcryptCost = 31 }, "bcrypt_cost"},
		{"seed", func(c *Config) { c.DevServer.SeedPath = "/nonexistent/seed.json" }, "seed file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestStageList_EmptyMeansKanban(t *testing.T) {
	stages, err := BoardConfig{}.StageList()
	require.NoError(t, err)
	assert.Equal(t, types.KanbanStatuses, stages)
}
