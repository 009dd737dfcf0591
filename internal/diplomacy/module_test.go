package diplomacy

import (
	"testing"
	"time"

	"go-concord/pkg/middleware"
	"go-concord/pkg/module"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ module.Module = (*Module)(nil)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DIPLOMACY_STORE", "memory")
	t.Setenv("DIPLOMACY_LOCK_TTL", "30s")
	t.Setenv("DIPLOMACY_EVENT_BUFFER", "16")
	t.Setenv("DIPLOMACY_MAX_ALLIANCE_MEMBERS", "4")

	cfg := LoadConfig()
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 16, cfg.EventBuffer)
	assert.Equal(t, "diplomacy:events", cfg.EventsChannel)
	assert.Equal(t, "@every 60s", cfg.SweepSchedule)
	assert.Equal(t, 4, cfg.Policy.MaxAllianceMembers)
}

func TestConfigRejectsWriteTimeoutPastLockTTL(t *testing.T) {
	tests := []struct {
		name         string
		lockTTL      time.Duration
		writeTimeout time.Duration
		wantErr      string
	}{
		{name: "defaults", lockTTL: 15 * time.Second, writeTimeout: 5 * time.Second},
		{name: "write timeout equals lock ttl", lockTTL: 5 * time.Second, writeTimeout: 5 * time.Second, wantErr: "must be shorter than DIPLOMACY_LOCK_TTL"},
		{name: "write timeout exceeds lock ttl", lockTTL: time.Second, writeTimeout: 10 * time.Second, wantErr: "must be shorter than DIPLOMACY_LOCK_TTL"},
		{name: "zero write timeout", lockTTL: time.Second, wantErr: "DIPLOMACY_WRITE_TIMEOUT must be positive"},
		{name: "zero lock ttl", writeTimeout: time.Second, wantErr: "DIPLOMACY_LOCK_TTL must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			cfg.Store = "memory"
			cfg.LockTTL = tt.lockTTL
			cfg.WriteTimeout = tt.writeTimeout

			m, err := New(nil, nil, middleware.NewActorAuthenticator([]byte("secret")), cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				require.NotNil(t, m)
				m.Stop()
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, m)
		})
	}
}

func TestModuleRunsWithoutBackingServices(t *testing.T) {
	cfg := LoadConfig()
	cfg.SweepSchedule = "@every 1h"

	m, err := New(nil, nil, middleware.NewActorAuthenticator([]byte("secret")), cfg)
	require.NoError(t, err)
	assert.Equal(t, "diplomacy", m.Name())
	require.NotNil(t, m.Service())

	m.StartBackgroundTasks(t.Context())
	m.Stop()

	select {
	case <-m.StopChannel():
	default:
		t.Fatal("stop channel not closed")
	}
}
