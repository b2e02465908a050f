package jobs

import (
	"context"
	"time"

	"git.handmade.network/hmn/postmerge/src/logging"
	"github.com/rs/zerolog"
)

/*
This package runs and shuts down the long-lived work of the server (the HTTP
listeners and periodic reporting). A Job owns a context that is canceled on
shutdown, and reports back when it has actually stopped.
*/

type Job struct {
	Name   string
	Ctx    context.Context
	Logger zerolog.Logger
	cancel func()
	done   chan struct{}
}

func New(name string) *Job {
	logger := logging.With().Str("job", name).Logger()
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.AttachLoggerToContext(&logger, ctx)
	return &Job{
		Name:   name,
		Ctx:    ctx,
		Logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Starts fn in a goroutine and finishes the job when fn returns. Panics in fn
// are logged and also finish the job.
func Go(name string, fn func(job *Job)) *Job {
	job := New(name)
	go func() {
		defer job.Finish()
		defer logging.LogPanics(&job.Logger)
		fn(job)
	}()
	return job
}

/*
Calls fn every interval until the job is canceled, starting right away. A
slow fn delays the next tick rather than overlapping with it.
*/
func Periodically(name string, interval time.Duration, fn func(ctx context.Context)) *Job {
	return Go(name, func(job *Job) {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			fn(job.Ctx)
			select {
			case <-t.C:
			case <-job.Canceled():
				return
			}
		}
	})
}

// Cancels the job's context, asking it to stop.
func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) Canceled() <-chan struct{} {
	return j.Ctx.Done()
}

// Marks the job as stopped. Called by the job itself.
func (j *Job) Finish() *Job {
	close(j.done)
	return j
}

func (j *Job) Finished() <-chan struct{} {
	return j.done
}

// Jobs can be built with ordinary slice syntax.
type Jobs []*Job

// Cancels every job and waits for them all to finish, or for the timeout.
// Returns the names of the jobs still running.
func (jobs Jobs) CancelAndWait(timeout time.Duration) []string {
	allDoneChan := make(chan struct{})
	for _, job := range jobs {
		job.Cancel()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	go func() {
		for _, job := range jobs {
			<-job.Finished()
		}
		close(allDoneChan)
	}()

	select {
	case <-timer.C:
		return jobs.ListUnfinished()
	case <-allDoneChan:
		return nil
	}
}

func (jobs Jobs) ListUnfinished() []string {
	unfinished := []string{}
	for _, job := range jobs {
		select {
		case <-job.Finished():
			continue
		default:
			unfinished = append(unfinished, job.Name)
		}
	}
	return unfinished
}
