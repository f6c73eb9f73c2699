package model

// TaskStatus is the lifecycle state of a conversion task. Tasks move
// Pending -> Starting -> Running and end in exactly one of Completed,
// Stopped, or Error; a Stop request parks them in Stopping until the
// worker records the terminal state.
type TaskStatus string

const (
	// TaskStatusPending: registered, worker not yet scheduled
	TaskStatusPending TaskStatus = "Pending"

	// TaskStatusStarting: worker is preparing the external command
	TaskStatusStarting TaskStatus = "Starting"

	// TaskStatusRunning: the external command is executing
	TaskStatusRunning TaskStatus = "Running"

	// TaskStatusStopping: cancellation requested, command still exiting
	TaskStatusStopping TaskStatus = "Stopping"

	// TaskStatusStopped: cancelled before completion
	TaskStatusStopped TaskStatus = "Stopped"

	// TaskStatusCompleted: finished successfully, output available
	TaskStatusCompleted TaskStatus = "Completed"

	// TaskStatusError: failed, LastError holds the cause
	TaskStatusError TaskStatus = "Error"
)

func (ts TaskStatus) String() string {
	return string(ts)
}

// IsActive reports whether the task still has a live worker attached.
func (ts TaskStatus) IsActive() bool {
	return ts == TaskStatusStarting || ts == TaskStatusRunning || ts == TaskStatusStopping
}

// IsFinished reports whether the task reached a terminal state.
func (ts TaskStatus) IsFinished() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusStopped || ts == TaskStatusError
}
