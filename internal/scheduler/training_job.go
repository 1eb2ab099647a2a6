package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/groverq/internal/runs"
)

// RunSubmitter queues training runs.
type RunSubmitter interface {
	Submit(ctx context.Context, req runs.Request) (*runs.Run, error)
}

// TrainingJob queues a run built from a fixed request template.
type TrainingJob struct {
	submitter RunSubmitter
	template  runs.Request
	trigger   runs.Trigger
	log       zerolog.Logger
}

// NewTrainingJob creates a job that submits template with trigger set.
func NewTrainingJob(submitter RunSubmitter, template runs.Request, trigger runs.Trigger, log zerolog.Logger) *TrainingJob {
	return &TrainingJob{
		submitter: submitter,
		template:  template,
		trigger:   trigger,
		log:       log.With().Str("job", "training").Logger(),
	}
}

// Name returns the job name
func (j *TrainingJob) Name() string {
	return "training"
}

// Run submits one run. It does not wait for the run to finish.
func (j *TrainingJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := j.template
	req.Trigger = j.trigger

	run, err := j.submitter.Submit(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to submit %s run: %w", j.trigger, err)
	}

	j.log.Info().Str("run_id", run.ID).Str("trigger", string(j.trigger)).Msg("Training run submitted")
	return nil
}
