package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/domain"
	"github.com/alanyoungcy/marketwatch/internal/engine"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingTicker struct {
	calls atomic.Int32
	fn    func(n int32) (engine.TickReport, error)
}

func (c *countingTicker) Tick(context.Context) (engine.TickReport, error) {
	n := c.calls.Add(1)
	if c.fn != nil {
		return c.fn(n)
	}
	return engine.TickReport{}, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSchedulerTicksImmediatelyAndOnTrigger(t *testing.T) {
	tk := &countingTicker{}
	s := NewScheduler(tk, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunLoop(ctx) }()

	waitFor(t, func() bool { return tk.calls.Load() == 1 })
	s.Trigger()
	waitFor(t, func() bool { return tk.calls.Load() == 2 })

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("RunLoop = %v, want context.Canceled", err)
	}
}

func TestSchedulerSurvivesErrorsAndPanics(t *testing.T) {
	tk := &countingTicker{fn: func(n int32) (engine.TickReport, error) {
		switch n {
		case 1:
			panic("tick blew up")
		case 2:
			return engine.TickReport{}, errors.New("persist failed")
		case 3:
			return engine.TickReport{}, domain.ErrTickInProgress
		}
		return engine.TickReport{}, nil
	}}
	s := NewScheduler(tk, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.RunLoop(ctx) }()

	waitFor(t, func() bool { return tk.calls.Load() >= 5 })
}

func TestTriggerCoalesces(t *testing.T) {
	s := NewScheduler(&countingTicker{}, time.Hour, testLogger())
	s.Trigger()
	s.Trigger()
	s.Trigger()
	if len(s.trigger) != 1 {
		t.Fatalf("pending triggers = %d, want 1", len(s.trigger))
	}
}

type docSource struct{ doc domain.LedgerDocument }

func (d docSource) Document() domain.LedgerDocument { return d.doc }

type fakeArchiver struct {
	backups atomic.Int32
	err     error
}

func (f *fakeArchiver) ArchiveRetired(context.Context, []domain.Record) (string, error) {
	return "", nil
}

func (f *fakeArchiver) Backup(context.Context, domain.LedgerDocument) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.backups.Add(1)
	return "backups/ledger.json", nil
}

func TestBackupRun(t *testing.T) {
	arch := &fakeArchiver{}
	b := NewBackup(docSource{doc: domain.NewLedgerDocument()}, arch, testLogger())
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if arch.backups.Load() != 1 {
		t.Fatal("backup not written")
	}

	arch.err = errors.New("bucket missing")
	if err := b.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestBackupRunCronRejectsBadSpec(t *testing.T) {
	b := NewBackup(docSource{}, &fakeArchiver{}, testLogger())
	if err := b.RunCron(context.Background(), "not a cron"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBackupRunCronFires(t *testing.T) {
	arch := &fakeArchiver{}
	b := NewBackup(docSource{doc: domain.NewLedgerDocument()}, arch, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.RunCron(ctx, "@every 1s") }()

	waitForLong(t, func() bool { return arch.backups.Load() >= 1 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("RunCron = %v", err)
	}
}

func waitForLong(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestOrchestratorCleanShutdown(t *testing.T) {
	tk := &countingTicker{}
	o := NewOrchestrator(NewScheduler(tk, time.Hour, testLogger()), nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	waitFor(t, func() bool { return tk.calls.Load() == 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run = %v, want nil on shutdown", err)
	}
}
