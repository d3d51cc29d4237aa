package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"unscored/internal/models"
	"unscored/internal/observability"
)

// fallbackInterval is used when a state carries no usable interval.
const fallbackInterval = time.Minute

type runResult struct {
	community string
	err       error
}

// Scheduler runs Ingester steps for every registered community, each at its
// own interval. A community is never stepped by two workers at once.
type Scheduler struct {
	ingester *Ingester
	states   States
	workers  int
	now      func() time.Time

	addCh    chan string
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler returns a Scheduler driving ingester over states.
func NewScheduler(ingester *Ingester, states States) *Scheduler {
	workers := ingester.opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{
		ingester: ingester,
		states:   states,
		workers:  workers,
		now:      time.Now,
		addCh:    make(chan string, 64),
		stopCh:   make(chan struct{}),
	}
}

// Add schedules a newly registered community for an immediate step. It is a
// no-op once the scheduler stopped.
func (s *Scheduler) Add(name string) {
	select {
	case s.addCh <- name:
	case <-s.stopCh:
	}
}

// Stop ends the loop and waits for running steps to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// Run blocks until ctx is cancelled or Stop is called. Every known community
// and the global feed start staggered one second apart.
func (s *Scheduler) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	results := make(chan runResult, s.workers)
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for name := range jobs {
				results <- runResult{community: name, err: s.runOne(ctx, name)}
			}
		}()
	}
	defer close(jobs)

	queue := NewQueue()
	scheduled := map[string]bool{}
	inFlight := map[string]bool{}
	now := s.now()
	queue.Push(models.GlobalStateKey, now)
	scheduled[models.GlobalStateKey] = true
	for i, name := range s.states.Names() {
		queue.Push(name, now.Add(time.Duration(i+1)*time.Second))
		scheduled[name] = true
	}
	observability.Logger.InfoContext(ctx, "ingestion scheduler started",
		slog.Int("communities", queue.Len()-1),
		slog.Int("workers", s.workers),
	)

	var ready []string
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		// Move due entries onto the ready list.
		now := s.now()
		for {
			name, due, ok := queue.Peek()
			if !ok || due.After(now) {
				break
			}
			queue.Pop()
			ready = append(ready, name)
		}

		var send chan string
		var next string
		if len(ready) > 0 {
			send, next = jobs, ready[0]
		}
		if _, due, ok := queue.Peek(); ok {
			resetTimer(timer, due.Sub(now))
		} else {
			resetTimer(timer, time.Hour)
		}

		select {
		case <-ctx.Done():
			s.drain(results, inFlight)
			return
		case <-s.stopCh:
			cancel()
			s.drain(results, inFlight)
			return
		case send <- next:
			ready = ready[1:]
			delete(scheduled, next)
			inFlight[next] = true
		case res := <-results:
			delete(inFlight, res.community)
			if due, ok := s.nextDue(res.community); ok {
				queue.Push(res.community, due)
				scheduled[res.community] = true
			}
		case name := <-s.addCh:
			if !scheduled[name] && !inFlight[name] {
				queue.Push(name, s.now())
				scheduled[name] = true
			}
		case <-timer.C:
		}
	}
}

// drain waits for in-flight steps so workers never block on results.
func (s *Scheduler) drain(results <-chan runResult, inFlight map[string]bool) {
	for len(inFlight) > 0 {
		res := <-results
		delete(inFlight, res.community)
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	if d < 0 {
		d = 0
	}
	t.Reset(d)
}

// runOne steps one community. A panic is reported as a failed step.
func (s *Scheduler) runOne(ctx context.Context, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingest panic: %v", r)
		}
		outcome := "ok"
		if err != nil {
			outcome = "failed"
			observability.Logger.ErrorContext(observability.WithCommunity(ctx, name), "ingestion step failed",
				slog.String("error", err.Error()),
			)
		}
		observability.IngestRuns.WithLabelValues(outcome).Inc()
	}()
	if name == models.GlobalStateKey {
		return s.ingester.StepGlobal(ctx)
	}
	return s.ingester.Step(ctx, name)
}

// nextDue returns when name should run again, based on its stored interval.
func (s *Scheduler) nextDue(name string) (time.Time, bool) {
	state, ok := s.states.Get(name)
	if !ok {
		return time.Time{}, false
	}
	interval := state.Interval()
	if interval <= 0 {
		interval = fallbackInterval
	}
	return s.now().Add(interval), true
}
