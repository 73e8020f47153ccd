package control

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/alanyoungcy/marketwatch/internal/domain"
	"github.com/alanyoungcy/marketwatch/internal/engine"
	"github.com/alanyoungcy/marketwatch/internal/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEngine struct {
	report  engine.TickReport
	err     error
	ticks   int
	running bool
	last    *engine.TickReport
}

func (f *fakeEngine) Tick(context.Context) (engine.TickReport, error) {
	f.ticks++
	if f.err == nil {
		r := f.report
		f.last = &r
	}
	return f.report, f.err
}

func (f *fakeEngine) Running() bool { return f.running }

func (f *fakeEngine) LastReport() (engine.TickReport, bool) {
	if f.last == nil {
		return engine.TickReport{}, false
	}
	return *f.last, true
}

func newService(t *testing.T, eng *fakeEngine) (*Service, *ledger.Ledger, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	led := ledger.New(store, "-1001", testLogger())
	return NewService(eng, led, testLogger()), led, store
}

func TestTickNow(t *testing.T) {
	eng := &fakeEngine{report: engine.TickReport{Watched: 3, Opened: 1}}
	svc, _, _ := newService(t, eng)

	rep, err := svc.TickNow(context.Background())
	if err != nil {
		t.Fatalf("TickNow: %v", err)
	}
	if rep.Watched != 3 || eng.ticks != 1 {
		t.Errorf("report = %+v, ticks = %d", rep, eng.ticks)
	}
}

func TestTickNowReportsOverlap(t *testing.T) {
	svc, _, _ := newService(t, &fakeEngine{err: domain.ErrTickInProgress})
	_, err := svc.TickNow(context.Background())
	if !errors.Is(err, domain.ErrTickInProgress) {
		t.Fatalf("err = %v, want ErrTickInProgress", err)
	}
}

func TestSummaryIncludesLedgerAndLastTick(t *testing.T) {
	eng := &fakeEngine{report: engine.TickReport{Watched: 2}}
	svc, led, _ := newService(t, eng)
	led.Upsert("A", domain.Record{Status: domain.StatusOpen, AnnouncedOpen: true})
	led.Upsert("B", domain.Record{Status: domain.StatusResolved, Retired: true, AnnouncedResolved: true})

	if sum := svc.Summary(); sum.LastTick != nil {
		t.Fatalf("LastTick before any tick = %+v", sum.LastTick)
	}
	if _, err := svc.TickNow(context.Background()); err != nil {
		t.Fatal(err)
	}

	sum := svc.Summary()
	if sum.Total != 2 || sum.Open != 1 || sum.Resolved != 1 || sum.Retired != 1 {
		t.Errorf("counts = %+v", sum.Stats)
	}
	if sum.TargetChatID != "-1001" {
		t.Errorf("destination = %q, want default", sum.TargetChatID)
	}
	if sum.LastTick == nil || sum.LastTick.Watched != 2 {
		t.Errorf("LastTick = %+v", sum.LastTick)
	}

	text := FormatSummary(sum)
	for _, want := range []string{"total: 2", "open: 1", "retired: 1", "destination: -1001", "last tick"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary text missing %q:\n%s", want, text)
		}
	}
}

func TestSetDestination(t *testing.T) {
	ctx := context.Background()
	svc, led, store := newService(t, &fakeEngine{})

	if err := svc.SetDestination(ctx, "@alerts"); err != nil {
		t.Fatalf("SetDestination: %v", err)
	}
	if led.TargetChatID() != "@alerts" {
		t.Errorf("TargetChatID = %q", led.TargetChatID())
	}
	if store.Saves() != 1 {
		t.Errorf("saves = %d, want 1", store.Saves())
	}

	if err := svc.SetDestination(ctx, "not a chat"); !errors.Is(err, domain.ErrInvalidDestination) {
		t.Errorf("err = %v, want ErrInvalidDestination", err)
	}
	if led.TargetChatID() != "@alerts" {
		t.Errorf("invalid destination changed target to %q", led.TargetChatID())
	}

	if err := svc.SetDestination(ctx, ""); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if led.TargetChatID() != "-1001" {
		t.Errorf("reset TargetChatID = %q, want default", led.TargetChatID())
	}
}

func TestSkipSeed(t *testing.T) {
	svc, led, store := newService(t, &fakeEngine{})
	if err := svc.SkipSeed(context.Background()); err != nil {
		t.Fatalf("SkipSeed: %v", err)
	}
	if !led.Seeded() || led.Len() != 0 {
		t.Errorf("seeded = %v, len = %d", led.Seeded(), led.Len())
	}
	if store.Saves() != 1 {
		t.Errorf("saves = %d", store.Saves())
	}
}

func TestFormatReport(t *testing.T) {
	if got := FormatReport(engine.TickReport{Seeded: true, Fetched: 4}); got != "seeded ledger from 4 snapshots" {
		t.Errorf("seed report = %q", got)
	}
	got := FormatReport(engine.TickReport{Watched: 5, Fetched: 4, Skipped: 1, Closed: 1, Trended: 2})
	if !strings.Contains(got, "announced 3") || !strings.Contains(got, "trending 2") {
		t.Errorf("report = %q", got)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in, name, arg string
	}{
		{"/tick", "tick", ""},
		{"/setchat@marketwatch_bot -100123", "setchat", "-100123"},
		{"  /STATUS  ", "status", ""},
		{"hello", "", ""},
	}
	for _, tt := range tests {
		name, arg := parseCommand(tt.in)
		if name != tt.name || arg != tt.arg {
			t.Errorf("parseCommand(%q) = (%q, %q), want (%q, %q)", tt.in, name, arg, tt.name, tt.arg)
		}
	}
}

type recordedReply struct {
	chatID int64
	text   string
}

type fakeReplier struct{ replies []recordedReply }

func (f *fakeReplier) Reply(_ context.Context, chatID int64, text string) error {
	f.replies = append(f.replies, recordedReply{chatID, text})
	return nil
}

func newTestBot(svc *Service, allowed ...int64) (*Bot, *fakeReplier) {
	r := &fakeReplier{}
	b := &Bot{
		cmd:     textCommander{svc: svc},
		reply:   r,
		allowed: make(map[int64]bool),
		logger:  testLogger(),
	}
	for _, id := range allowed {
		b.allowed[id] = true
	}
	return b, r
}

func TestBotCommands(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{report: engine.TickReport{Watched: 1}}
	svc, led, _ := newService(t, eng)
	bot, replies := newTestBot(svc)

	bot.handle(ctx, 42, "/here")
	if led.TargetChatID() != "42" {
		t.Errorf("/here target = %q", led.TargetChatID())
	}

	bot.handle(ctx, 42, "/tick")
	if eng.ticks != 1 {
		t.Errorf("/tick ran %d ticks", eng.ticks)
	}

	bot.handle(ctx, 42, "/setchat")
	bot.handle(ctx, 42, "/skipseed")
	if !led.Seeded() {
		t.Error("/skipseed did not seed")
	}
	bot.handle(ctx, 42, "just chatting")

	if len(replies.replies) != 4 {
		t.Fatalf("replies = %+v, want 4", replies.replies)
	}
	if !strings.HasPrefix(replies.replies[1].text, "tick done") {
		t.Errorf("tick reply = %q", replies.replies[1].text)
	}
	if !strings.HasPrefix(replies.replies[2].text, "usage") {
		t.Errorf("setchat reply = %q", replies.replies[2].text)
	}
}

func TestBotReportsErrors(t *testing.T) {
	svc, _, _ := newService(t, &fakeEngine{err: errors.New("persist failed")})
	bot, replies := newTestBot(svc)

	bot.handle(context.Background(), 7, "/tick")
	if len(replies.replies) != 1 || !strings.Contains(replies.replies[0].text, "persist failed") {
		t.Errorf("replies = %+v", replies.replies)
	}
}

func TestBotIgnoresUnauthorisedChats(t *testing.T) {
	eng := &fakeEngine{}
	svc, _, _ := newService(t, eng)
	bot, replies := newTestBot(svc, 100)

	bot.handle(context.Background(), 200, "/tick")
	if eng.ticks != 0 || len(replies.replies) != 0 {
		t.Errorf("unauthorised command ran: ticks=%d replies=%v", eng.ticks, replies.replies)
	}
}
