package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/config"
	"github.com/alanyoungcy/marketwatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Site.BaseURL = "http://127.0.0.1:1"
	cfg.Ledger.Backend = "memory"
	cfg.Notify.TelegramChatID = "-100"
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return &cfg
}

func TestWireWithoutOptionalServices(t *testing.T) {
	cfg := testConfig(t)
	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	if deps.SignalBus != nil || deps.RateLimiter != nil {
		t.Error("redis features wired without redis")
	}
	if deps.Backup != nil {
		t.Error("backup wired without s3")
	}
	if deps.Bot != nil {
		t.Error("bot wired without a token")
	}
	if got := deps.Ledger.Backend(); got != "memory" {
		t.Errorf("ledger backend = %q", got)
	}
	if len(deps.Notifier.Senders()) != 0 {
		t.Errorf("senders = %v", deps.Notifier.Senders())
	}
}

func TestOpenLedgerStoreBackends(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		backend string
		want    string
		wantErr bool
	}{
		{"memory", "memory", false},
		{"file", "file", false},
		{"sqlite", "sqlite", false},
		{"postgres", "", true},
		{"redis", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Ledger.Backend = tt.backend
			cfg.Ledger.Path = filepath.Join(dir, tt.backend+".db")

			store, closer, err := openLedgerStore(context.Background(), &cfg, infra{})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("openLedgerStore: %v", err)
			}
			if closer != nil {
				defer closer()
			}
			if store.Name() != tt.want {
				t.Errorf("Name = %q, want %q", store.Name(), tt.want)
			}
		})
	}
}

func TestStatusModePrintsSummary(t *testing.T) {
	cfg := testConfig(t)
	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()
	deps.Ledger.Upsert("M1", domain.Record{Status: domain.StatusOpen})

	var buf bytes.Buffer
	a := New(cfg, testLogger())
	a.out = &buf
	if err := a.StatusMode(context.Background(), deps); err != nil {
		t.Fatalf("StatusMode: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if got["total"] != float64(1) || got["open"] != float64(1) {
		t.Errorf("summary = %v", got)
	}
	if got["target_chat_id"] != "-100" {
		t.Errorf("target_chat_id = %v", got["target_chat_id"])
	}
}

func TestLockTTL(t *testing.T) {
	if got := lockTTL(time.Minute); got != 5*time.Minute {
		t.Errorf("lockTTL(1m) = %v", got)
	}
	if got := lockTTL(10 * time.Minute); got != 30*time.Minute {
		t.Errorf("lockTTL(10m) = %v", got)
	}
}
