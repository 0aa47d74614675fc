package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratusio/stratus-cli/internal/config"
	"github.com/stratusio/stratus-cli/internal/events"
	"github.com/stratusio/stratus-cli/internal/settings"
)

func TestNormalizeLoginHost(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"login.stratus.io", "login.stratus.io"},
		{"https://login.stratus.io", "login.stratus.io"},
		{"http://localhost:6109", "localhost:6109"},
		{"  Login.Stratus.IO  ", "login.stratus.io"},
		{"https://test.stratus.io/path/ignored", "test.stratus.io"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeLoginHost(tt.input))
		})
	}
}

func TestLoginHostDefault(t *testing.T) {
	m, _ := newTestManager(t)
	assert.Equal(t, config.DefaultLoginHost, m.LoginHost())
}

func TestLoginHostLegacyKeyMigration(t *testing.T) {
	m, st := newTestManager(t)
	require.NoError(t, st.SetString(settings.KeyLegacyLoginHost, "https://legacy.stratus.io"))

	assert.Equal(t, "legacy.stratus.io", m.LoginHost())

	// Migrated to the standard key, deprecated key deleted
	assert.Empty(t, st.GetString(settings.KeyLegacyLoginHost))
	assert.Equal(t, "legacy.stratus.io", st.GetString(settings.KeyLoginHost))

	// Second read comes from the standard key
	assert.Equal(t, "legacy.stratus.io", m.LoginHost())
}

func TestLoginHostBootConfigTier(t *testing.T) {
	m, _ := newTestManager(t)
	m.cfg.BootLoginHost = "https://boot.stratus.io"
	assert.Equal(t, "boot.stratus.io", m.LoginHost())
}

func TestLoginHostAppSettingsTier(t *testing.T) {
	m, st := newTestManager(t)
	require.NoError(t, st.SetString(settings.KeyAppLoginHost, "sandbox.stratus.io"))
	assert.Equal(t, "sandbox.stratus.io", m.LoginHost())
}

func TestLoginHostCustomSentinel(t *testing.T) {
	m, st := newTestManager(t)
	require.NoError(t, st.SetString(settings.KeyAppLoginHost, CustomHostSentinel))
	require.NoError(t, st.SetString(settings.KeyAppCustomHost, "https://custom.stratus.io"))
	assert.Equal(t, "custom.stratus.io", m.LoginHost())
}

func TestLoginHostCustomSentinelSelfHeals(t *testing.T) {
	m, st := newTestManager(t)
	require.NoError(t, st.SetString(settings.KeyAppLoginHost, CustomHostSentinel))
	// No custom value configured: fall back to the default and repair the key
	assert.Equal(t, config.DefaultLoginHost, m.LoginHost())
	assert.Equal(t, config.DefaultLoginHost, st.GetString(settings.KeyAppLoginHost))
}

func TestSetLoginHostNotifies(t *testing.T) {
	m, st := newTestManager(t)

	var got []events.LoginHostChanged
	sub := m.Events().Subscribe(func(event any) {
		if ev, ok := event.(events.LoginHostChanged); ok {
			got = append(got, ev)
		}
	})
	defer sub.Cancel()

	require.NoError(t, m.SetLoginHost("https://test.stratus.io"))
	assert.Equal(t, "test.stratus.io", st.GetString(settings.KeyLoginHost))
	require.Len(t, got, 1)
	assert.Equal(t, config.DefaultLoginHost, got[0].Original)
	assert.Equal(t, "test.stratus.io", got[0].Updated)
}

func TestUpdateLoginHostUnchanged(t *testing.T) {
	m, st := newTestManager(t)
	require.NoError(t, st.SetString(settings.KeyLoginHost, "sandbox.stratus.io"))
	require.NoError(t, st.SetString(settings.KeyAppLoginHost, "sandbox.stratus.io"))

	result, err := m.UpdateLoginHost()
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, "sandbox.stratus.io", result.Original)
	assert.Equal(t, "sandbox.stratus.io", result.Updated)
}

func TestUpdateLoginHostAdoptsAppHost(t *testing.T) {
	m, st := newTestManager(t)
	require.NoError(t, st.SetString(settings.KeyLoginHost, "login.stratus.io"))
	require.NoError(t, st.SetString(settings.KeyAppLoginHost, "sandbox.stratus.io"))

	result, err := m.UpdateLoginHost()
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, "login.stratus.io", result.Original)
	assert.Equal(t, "sandbox.stratus.io", result.Updated)
	assert.Equal(t, "sandbox.stratus.io", m.LoginHost(), "active host mutated")
}

func TestUpdateLoginHostNoAppValue(t *testing.T) {
	m, st := newTestManager(t)
	require.NoError(t, st.SetString(settings.KeyLoginHost, "login.stratus.io"))

	result, err := m.UpdateLoginHost()
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, "login.stratus.io", m.LoginHost())
}
