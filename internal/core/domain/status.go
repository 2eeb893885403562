package domain

// StatusKey is the canonical runtime state of an instance. Status is never
// persisted; it is re-derived from the container runtime on every query.
type StatusKey string

const (
	StatusRunning    StatusKey = "running"
	StatusRestarting StatusKey = "restarting"
	StatusExited     StatusKey = "exited"
	StatusUnknown    StatusKey = "unknown"
)

// RuntimeStatus is the derived state plus the label/color pair the UI shows.
type RuntimeStatus struct {
	Key   StatusKey `json:"status"`
	Label string    `json:"label"`
	Color string    `json:"color"`
}

var statuses = map[StatusKey]RuntimeStatus{
	StatusRunning:    {StatusRunning, "Running", "green"},
	StatusRestarting: {StatusRestarting, "Restarting", "orange"},
	StatusExited:     {StatusExited, "Stopped", "red"},
	StatusUnknown:    {StatusUnknown, "Unknown", "gray"},
}

// Status returns the display tuple for a canonical key.
func Status(key StatusKey) RuntimeStatus {
	if s, ok := statuses[key]; ok {
		return s
	}
	return statuses[StatusUnknown]
}

// StatusForState maps a raw container state string, as reported by the
// runtime, to the canonical three-state model. Paused containers are neither
// serving nor stopped, so they fall through to unknown.
func StatusForState(state string) RuntimeStatus {
	switch state {
	case "running":
		return Status(StatusRunning)
	case "restarting":
		return Status(StatusRestarting)
	case "exited", "dead", "created", "removing":
		return Status(StatusExited)
	default:
		return Status(StatusUnknown)
	}
}

// StatusForAction maps a runtime lifecycle event action to the tuple pushed
// to live subscribers. A stop event means the container is going down on its
// way through a managed transition, so it surfaces as restarting; die is the
// definitive exit. The second return is false for actions that are not part
// of the lifecycle set.
func StatusForAction(action string) (RuntimeStatus, bool) {
	switch action {
	case "start", "restart":
		return Status(StatusRunning), true
	case "stop":
		return Status(StatusRestarting), true
	case "die":
		return Status(StatusExited), true
	default:
		return RuntimeStatus{}, false
	}
}
