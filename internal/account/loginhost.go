package account

import (
	"strings"

	"github.com/stratusio/stratus-cli/internal/config"
	"github.com/stratusio/stratus-cli/internal/events"
	"github.com/stratusio/stratus-cli/internal/settings"
)

// CustomHostSentinel is the app-settings value meaning "a custom host is
// configured under the separate custom-host key".
const CustomHostSentinel = "CUSTOM"

// LoginHostUpdateResult reports a comparison of the active login host
// against the app-settings-derived one.
type LoginHostUpdateResult struct {
	Original string
	Updated  string
	Changed  bool
}

// LoginHost resolves the active login host, falling through four tiers: the
// deprecated legacy settings key (migrated and deleted on first read), the
// standard persisted key, the bundled manifest default, and the app-settings
// host. Only after all tiers come up empty does the hardcoded production
// default apply.
func (m *Manager) LoginHost() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginHostLocked()
}

func (m *Manager) loginHostLocked() string {
	if v := m.settings.GetString(settings.KeyLegacyLoginHost); v != "" {
		host := NormalizeLoginHost(v)
		if err := m.settings.SetString(settings.KeyLoginHost, host); err == nil {
			_ = m.settings.Delete(settings.KeyLegacyLoginHost)
		}
		return host
	}
	if v := m.settings.GetString(settings.KeyLoginHost); v != "" {
		return v
	}
	if v := m.cfg.BootLoginHost; v != "" {
		return NormalizeLoginHost(v)
	}
	if v := m.appSettingsHostLocked(); v != "" {
		return v
	}
	return config.DefaultLoginHost
}

// appSettingsHostLocked resolves the host exposed through app settings. The
// CUSTOM sentinel defers to the custom-host key; a missing custom value
// self-heals back to the production default.
func (m *Manager) appSettingsHostLocked() string {
	v := m.settings.GetString(settings.KeyAppLoginHost)
	if v != CustomHostSentinel {
		return NormalizeLoginHost(v)
	}
	custom := m.settings.GetString(settings.KeyAppCustomHost)
	if custom == "" {
		if err := m.settings.SetString(settings.KeyAppLoginHost, config.DefaultLoginHost); err != nil {
			m.log.Warn("could not self-heal app login host", "error", err)
		}
		return config.DefaultLoginHost
	}
	return NormalizeLoginHost(custom)
}

// SetLoginHost persists host as the active login host and broadcasts a
// host-changed notification carrying the old and new values.
func (m *Manager) SetLoginHost(host string) error {
	m.mu.Lock()
	host = NormalizeLoginHost(host)
	old := m.loginHostLocked()
	if err := m.settings.SetString(settings.KeyLoginHost, host); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	if old != host {
		m.bus.Publish(events.LoginHostChanged{Original: old, Updated: host})
	}
	return nil
}

// UpdateLoginHost compares the active host against the app-settings-derived
// host. When they differ and the app-settings value is present, it is
// adopted as the new active host; otherwise the comparison is reported
// without mutating state.
func (m *Manager) UpdateLoginHost() (LoginHostUpdateResult, error) {
	m.mu.Lock()
	current := m.loginHostLocked()
	appHost := m.appSettingsHostLocked()
	m.mu.Unlock()

	result := LoginHostUpdateResult{Original: current, Updated: current}
	if appHost == "" || appHost == current {
		return result, nil
	}
	if err := m.SetLoginHost(appHost); err != nil {
		return result, err
	}
	result.Updated = appHost
	result.Changed = true
	return result, nil
}

// NormalizeLoginHost canonicalizes a login host: whitespace and scheme
// stripped, any path dropped, lowercased.
func NormalizeLoginHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return strings.ToLower(host)
}
