package dashboard

// RunStatus is the bot's coarse operational state as understood by the dashboard.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusStopped RunStatus = "stopped"
	StatusError   RunStatus = "error"
	StatusUnknown RunStatus = "unknown"
)

// ParseRunStatus maps a server supplied status string. Anything unrecognised,
// including "not_initialized", is StatusUnknown.
func ParseRunStatus(s string) RunStatus {
	switch RunStatus(s) {
	case StatusRunning, StatusStopped, StatusError:
		return RunStatus(s)
	default:
		return StatusUnknown
	}
}

// Running reports whether the bot is running. Every other status is treated as not running.
func (s RunStatus) Running() bool { return s == StatusRunning }

// Label is the text shown in the status display.
func (s RunStatus) Label() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusStopped:
		return "Stopped"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Indicator is the indicator class shown next to the label; unknown shares the stopped look.
func (s RunStatus) Indicator() string {
	switch s {
	case StatusRunning, StatusError:
		return string(s)
	default:
		return string(StatusStopped)
	}
}
