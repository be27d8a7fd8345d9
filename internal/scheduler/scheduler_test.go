package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wesm/borderstat/internal/config"
)

func noop(ctx context.Context, job string) error { return nil }

func TestNew(t *testing.T) {
	s := New(noop)
	if s.cron == nil {
		t.Error("cron is nil")
	}
	if s.jobs == nil {
		t.Error("jobs map is nil")
	}
	if s.IsRunning() {
		t.Error("new scheduler reports running")
	}
}

func TestAddJob(t *testing.T) {
	s := New(noop)

	if err := s.AddJob(SummaryJob, "0 2 * * *"); err != nil {
		t.Fatalf("AddJob() = %v", err)
	}
	if !s.IsScheduled(SummaryJob) {
		t.Error("job was not scheduled")
	}
}

func TestAddJobInvalidCron(t *testing.T) {
	s := New(noop)
	if err := s.AddJob(SummaryJob, "invalid cron"); err == nil {
		t.Error("AddJob() with invalid cron = nil, want error")
	}
	if s.IsScheduled(SummaryJob) {
		t.Error("invalid job was scheduled")
	}
}

func TestAddJobReplacesExisting(t *testing.T) {
	s := New(noop)
	if err := s.AddJob(SummaryJob, "0 2 * * *"); err != nil {
		t.Fatalf("AddJob() = %v", err)
	}
	s.mu.RLock()
	firstID := s.jobs[SummaryJob]
	s.mu.RUnlock()

	if err := s.AddJob(SummaryJob, "@hourly"); err != nil {
		t.Fatalf("AddJob() replacement = %v", err)
	}
	s.mu.RLock()
	secondID := s.jobs[SummaryJob]
	entries := len(s.cron.Entries())
	s.mu.RUnlock()

	if firstID == secondID {
		t.Error("job was not replaced")
	}
	if entries != 1 {
		t.Errorf("cron entries = %d, want 1", entries)
	}
	if got := s.Status()[0].Schedule; got != "@hourly" {
		t.Errorf("Schedule = %q, want @hourly", got)
	}
}

func TestRemoveJob(t *testing.T) {
	s := New(noop)
	if err := s.AddJob(SummaryJob, "0 2 * * *"); err != nil {
		t.Fatalf("AddJob() = %v", err)
	}
	s.RemoveJob(SummaryJob)
	if s.IsScheduled(SummaryJob) {
		t.Error("job still scheduled after RemoveJob")
	}
	// Removing an unknown job is a no-op.
	s.RemoveJob("other")
}

func TestAddFromConfig(t *testing.T) {
	cfg, err := config.Load("", t.TempDir())
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	s := New(noop)
	added, err := s.AddFromConfig(cfg)
	if err != nil || added {
		t.Errorf("AddFromConfig() without schedule = %v, %v", added, err)
	}

	cfg.Server.RefreshSchedule = "*/15 * * * *"
	added, err = s.AddFromConfig(cfg)
	if err != nil || !added {
		t.Fatalf("AddFromConfig() = %v, %v", added, err)
	}
	if !s.IsScheduled(SummaryJob) {
		t.Error("summary job not scheduled")
	}

	cfg.Server.RefreshSchedule = "every so often"
	if _, err := s.AddFromConfig(cfg); err == nil {
		t.Error("AddFromConfig() with bad schedule = nil, want error")
	}
}

func TestStartStop(t *testing.T) {
	s := New(noop)
	s.Start()
	if !s.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	select {
	case <-s.Stop().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not complete")
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestStopCancelsRunningRefresh(t *testing.T) {
	started := make(chan struct{})
	s := New(func(ctx context.Context, job string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	if err := s.AddJob(SummaryJob, "0 0 1 1 *"); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.Trigger(SummaryJob); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("refresh did not start")
	}

	select {
	case <-s.Stop().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not complete after cancelling the refresh")
	}

	status := s.Status()
	if len(status) != 1 || status[0].LastError == "" {
		t.Errorf("status = %+v, want recorded error", status)
	}
	if err := s.Trigger(SummaryJob); err == nil {
		t.Error("Trigger() after Stop = nil, want error")
	}
}

func TestTrigger(t *testing.T) {
	var called atomic.Int32
	release := make(chan struct{})
	s := New(func(ctx context.Context, job string) error {
		called.Add(1)
		<-release
		return nil
	})

	if err := s.Trigger(SummaryJob); err == nil {
		t.Error("Trigger() of unscheduled job = nil, want error")
	}
	if err := s.AddJob(SummaryJob, "0 0 1 1 *"); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.Trigger(SummaryJob); err != nil {
		t.Fatalf("Trigger() = %v", err)
	}
	// The job is claimed before Trigger returns, so a second trigger fails.
	if err := s.Trigger(SummaryJob); err == nil {
		t.Error("Trigger() while running = nil, want error")
	}
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for s.Status()[0].Running && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if called.Load() != 1 {
		t.Errorf("refresh called %d times, want 1", called.Load())
	}
}

func TestTriggerPreventsDoubleRun(t *testing.T) {
	var concurrent, maxConcurrent atomic.Int32
	s := New(func(ctx context.Context, job string) error {
		c := concurrent.Add(1)
		for {
			m := maxConcurrent.Load()
			if c <= m || maxConcurrent.CompareAndSwap(m, c) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		concurrent.Add(-1)
		return nil
	})
	if err := s.AddJob(SummaryJob, "0 0 1 1 *"); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	for i := 0; i < 5; i++ {
		_ = s.Trigger(SummaryJob)
	}
	<-s.Stop().Done()

	if maxConcurrent.Load() != 1 {
		t.Errorf("max concurrent = %d, want 1", maxConcurrent.Load())
	}
}

func TestStatus(t *testing.T) {
	s := New(noop)
	for _, name := range []string{"summary", "groups"} {
		if err := s.AddJob(name, "0 2 * * *"); err != nil {
			t.Fatalf("AddJob(%s): %v", name, err)
		}
	}
	s.Start()
	defer s.Stop()

	status := s.Status()
	if len(status) != 2 {
		t.Fatalf("len(Status()) = %d, want 2", len(status))
	}
	if status[0].Name != "groups" || status[1].Name != "summary" {
		t.Errorf("names = %s, %s; want sorted", status[0].Name, status[1].Name)
	}
	for _, st := range status {
		if st.NextRun.IsZero() {
			t.Errorf("%s: NextRun is zero after Start", st.Name)
		}
		if st.Schedule != "0 2 * * *" {
			t.Errorf("%s: Schedule = %q", st.Name, st.Schedule)
		}
	}
}

func TestStatusAfterRefresh(t *testing.T) {
	fail := errors.New("upstream down")
	var calls atomic.Int32
	s := New(func(ctx context.Context, job string) error {
		if calls.Add(1) == 1 {
			return fail
		}
		return nil
	})
	if err := s.AddJob(SummaryJob, "0 0 1 1 *"); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	waitIdle := func() JobStatus {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if st := s.Status()[0]; !st.Running {
				return st
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatal("refresh did not finish")
		return JobStatus{}
	}

	if err := s.Trigger(SummaryJob); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	st := waitIdle()
	if st.LastError != fail.Error() || !st.LastRun.IsZero() {
		t.Errorf("after failure: %+v", st)
	}

	if err := s.Trigger(SummaryJob); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	st = waitIdle()
	if st.LastError != "" || st.LastRun.IsZero() {
		t.Errorf("after success: %+v", st)
	}
}

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 2 * * *", false},
		{"*/15 * * * *", false},
		{"@daily", false},
		{"0 0 2 * * *", true},
		{"not a cron", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCronExpr(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCronExpr(%q) = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}
