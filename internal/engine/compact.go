package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// compact drops retired records once the ledger exceeds the high-water
// mark. A retired market still listed this tick is kept, since dropping it
// would bring it back into the watch-set as unknown. Nothing is dropped
// after an empty list read. When an archiver is configured the records are
// archived first and kept if archiving fails.
func (e *Engine) compact(ctx context.Context, idx listIndex) (int, error) {
	led := e.deps.Ledger
	if e.cfg.HighWaterMark <= 0 || led.Len() <= e.cfg.HighWaterMark || idx.empty() {
		return 0, nil
	}

	var retired []domain.Record
	for _, r := range led.All() {
		if r.Retired && !idx.listed(r.ID) {
			retired = append(retired, r)
		}
	}
	if len(retired) == 0 {
		return 0, nil
	}

	if e.deps.Archiver != nil {
		path, err := e.deps.Archiver.ArchiveRetired(ctx, retired)
		if err != nil {
			return 0, fmt.Errorf("engine: archive retired records: %w", err)
		}
		e.logger.InfoContext(ctx, "retired records archived",
			slog.String("path", path),
			slog.Int("records", len(retired)),
		)
	}

	for _, r := range retired {
		led.Delete(r.ID)
	}
	e.deps.Metrics.Compacted(len(retired))
	e.logger.InfoContext(ctx, "ledger compacted",
		slog.Int("dropped", len(retired)),
		slog.Int("remaining", led.Len()),
	)
	return len(retired), nil
}
