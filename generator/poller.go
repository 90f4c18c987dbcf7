package generator

import (
	"context"
	"time"

	"brightfold/models"
)

const defaultPollInterval = 3 * time.Second

// TimelineEntry is one progress milestone. The timeline is append-only and
// deduplicated only against its immediate predecessor, so a message that
// repeats later appears again.
type TimelineEntry struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Update is delivered to the caller on every poll.
type Update struct {
	Job      *Job
	Timeline []TimelineEntry
}

// Poller tracks an asynchronous generation job by polling its status on a
// fixed interval. No backoff: the status endpoint is a trusted first-party
// service. Polling stops on the first terminal status or on context
// cancellation.
type Poller struct {
	client   *Client
	interval time.Duration
}

func NewPoller(client *Client) *Poller {
	return &Poller{client: client, interval: defaultPollInterval}
}

// Poll polls until the job completes or fails, invoking onUpdate after every
// successful poll. The reported progress never regresses; a lower value from
// the service keeps the previous high-water mark. Returns the terminal job.
func (p *Poller) Poll(ctx context.Context, trackingID string, onUpdate func(Update)) (*Job, error) {
	var timeline []TimelineEntry
	lastMessage := ""
	highWater := 0

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		job, err := p.client.Status(trackingID)
		if err != nil {
			return nil, err
		}

		if job.Progress < highWater {
			job.Progress = highWater
		}
		highWater = job.Progress

		if job.Message != "" && job.Message != lastMessage {
			timeline = append(timeline, TimelineEntry{Message: job.Message, At: time.Now()})
			lastMessage = job.Message
		}

		if onUpdate != nil {
			onUpdate(Update{Job: job, Timeline: timeline})
		}

		if IsTerminal(job.Status) {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// IsTerminal reports whether a job status admits no further transitions.
func IsTerminal(status string) bool {
	return status == models.JobCompleted || status == models.JobFailed
}
