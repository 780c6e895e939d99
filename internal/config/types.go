package config

// Config is the full on-disk configuration. JSON and YAML are both
// accepted; YAML is coerced to JSON before strict decoding.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Monitor  MonitorConfig  `json:"monitor"`
	Logging  LoggingConfig  `json:"logging"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// ServerConfig controls the operational HTTP listener.
// APIToken is the bearer secret for /run-health-check and /export-config
// (do not log).
type ServerConfig struct {
	Addr     string `json:"addr,omitempty"`
	APIToken string `json:"api_token"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// MonitorConfig controls the health sweep.
//
// Defaults (when fields are omitted/zero):
//   - schedule: "*/5 * * * *"
//   - probe_timeout: "10s"
//   - notify_rate_per_sec: 3
type MonitorConfig struct {
	// Schedule is a 5-field cron spec.
	Schedule string `json:"schedule,omitempty"`
	// ProbeTimeout bounds a single endpoint probe.
	ProbeTimeout string `json:"probe_timeout,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	// NotifyRatePerSec caps outbound notification sends.
	NotifyRatePerSec int `json:"notify_rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

const DefaultSchedule = "*/5 * * * *"

// Schedule returns the configured cron spec or the default.
func (m MonitorConfig) ScheduleOrDefault() string {
	if m.Schedule == "" {
		return DefaultSchedule
	}
	return m.Schedule
}
