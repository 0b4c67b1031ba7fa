package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/docchat-ai/docchat/internal/domain"
	"github.com/docchat-ai/docchat/internal/port"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollTimeout  = 120 * time.Second
	defaultPollInterval = time.Second
	maxConcurrentPolls  = 8
)

// JobPoller waits on external processing jobs until a terminal state or
// timeout. It holds no state beyond the configured clocks; the status
// endpoint is the source of truth.
type JobPoller struct {
	client   port.ProcessingClient
	timeout  time.Duration
	interval time.Duration
}

// NewJobPoller creates a poller. Zero timeout/interval select the defaults
// (120s / 1s).
func NewJobPoller(client port.ProcessingClient, timeout, interval time.Duration) *JobPoller {
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &JobPoller{client: client, timeout: timeout, interval: interval}
}

// Wait polls one job until it is terminal. A failed status returns
// *port.JobFailedError immediately, without waiting out the timeout; a job
// still running past the timeout returns *port.TimeoutError.
func (p *JobPoller) Wait(ctx context.Context, jobID string) (*port.JobUpdate, error) {
	start := time.Now()
	for {
		update, err := p.client.JobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch update.Status {
		case domain.JobStatusFinished:
			return update, nil
		case domain.JobStatusFailed:
			reason := update.Error
			if reason == "" {
				reason = "unknown error"
			}
			return nil, &port.JobFailedError{JobID: jobID, Reason: reason}
		}

		if elapsed := time.Since(start); elapsed > p.timeout {
			return nil, &port.TimeoutError{JobID: jobID, Elapsed: elapsed}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

// JobOutcome is the terminal result of waiting on one job.
type JobOutcome struct {
	Job    port.EnqueuedJob
	Update *port.JobUpdate
	Err    error
}

// WaitAll polls all jobs concurrently, each with its own timeout clock, and
// returns one outcome per job in input order. One job failing never discards
// the results of the others.
func (p *JobPoller) WaitAll(ctx context.Context, jobs []port.EnqueuedJob) []JobOutcome {
	outcomes := make([]JobOutcome, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPolls)
	for i, job := range jobs {
		g.Go(func() error {
			update, err := p.Wait(ctx, job.JobID)
			if err != nil {
				slog.Warn("job did not finish", "job_id", job.JobID, "file", job.FileName, "error", err)
			}
			outcomes[i] = JobOutcome{Job: job, Update: update, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
