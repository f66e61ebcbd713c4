package lifecycle

import "context"

// Phase orders shutdown hooks. Lower phases finish before higher ones start.
type Phase int

const (
	// PhaseIntake stops accepting new updates and HTTP traffic.
	PhaseIntake Phase = iota
	// PhaseWorkers drains background workers and pending purchase polls.
	PhaseWorkers
	// PhaseStorage closes connections to Redis and PostgreSQL.
	PhaseStorage
)

func (p Phase) String() string {
	switch p {
	case PhaseIntake:
		return "intake"
	case PhaseWorkers:
		return "workers"
	case PhaseStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Hook describes a named shutdown hook.
type Hook struct {
	Name  string
	Phase Phase
	Fn    func(ctx context.Context) error
}
