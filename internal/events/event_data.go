package events

// EventData is implemented by every typed event payload.
type EventData interface {
	EventType() EventType
}

// RunQueuedData contains data for RunQueued events
type RunQueuedData struct {
	RunID       string `json:"run_id"`
	Environment string `json:"environment"`
	MaxEpochs   int    `json:"max_epochs"`
	QueueDepth  int    `json:"queue_depth"`
}

func (d *RunQueuedData) EventType() EventType { return RunQueued }

// RunStartedData contains data for RunStarted events
type RunStartedData struct {
	RunID         string `json:"run_id"`
	States        int    `json:"states"`
	Actions       int    `json:"actions"`
	Width         int    `json:"width"`
	MaxIterations int    `json:"max_iterations"`
}

func (d *RunStartedData) EventType() EventType { return RunStarted }

// EpisodeCompletedData contains data for EpisodeCompleted events
type EpisodeCompletedData struct {
	RunID       string  `json:"run_id"`
	Episode     int     `json:"episode"`
	Steps       int     `json:"steps"`
	GoalReached bool    `json:"goal_reached"`
	Return      float64 `json:"return"`
	MaxQDelta   float64 `json:"max_q_delta"`
}

func (d *EpisodeCompletedData) EventType() EventType { return EpisodeCompleted }

// RunCompletedData contains data for RunCompleted events
type RunCompletedData struct {
	RunID       string  `json:"run_id"`
	Episodes    int     `json:"episodes"`
	Goals       int     `json:"goals"`
	SuccessRate float64 `json:"success_rate"`
	Converged   bool    `json:"converged"`
	DurationMs  int64   `json:"duration_ms"`
}

func (d *RunCompletedData) EventType() EventType { return RunCompleted }

// RunFailedData contains data for RunFailed events
type RunFailedData struct {
	RunID   string `json:"run_id"`
	Error   string `json:"error"`
	Episode *int   `json:"episode,omitempty"`
	Step    *int   `json:"step,omitempty"`
}

func (d *RunFailedData) EventType() EventType { return RunFailed }

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }
