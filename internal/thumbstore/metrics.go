package thumbstore

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/justyntemme/pixcore/internal/debug"
)

// OpMetric describes one completed public operation.
type OpMetric struct {
	Operation string
	Duration  time.Duration
	Retries   int
}

// MigrationMetric describes one completed schema migration.
type MigrationMetric struct {
	From, To int
	Duration time.Duration
	Outcome  string // "ok" or "failed"
}

// MetricsSink receives OpMetric/MigrationMetric events. A nil sink on
// Store disables metrics delivery beyond the debug log.
type MetricsSink interface {
	Op(OpMetric)
	Migration(MigrationMetric)
}

func (s *Store) recordOp(op string, start time.Time, retries int) {
	m := OpMetric{Operation: op, Duration: time.Since(start), Retries: retries}
	debug.Log(debug.THUMB, "op=%s duration=%s retries=%d", m.Operation, m.Duration, m.Retries)
	if s.metrics != nil {
		s.metrics.Op(m)
	}
}

func (s *Store) recordMigration(from, to int, start time.Time, outcome string) {
	m := MigrationMetric{From: from, To: to, Duration: time.Since(start), Outcome: outcome}
	debug.Log(debug.THUMB, "migration %d->%d duration=%s outcome=%s", m.From, m.To, m.Duration, m.Outcome)
	if s.metrics != nil {
		s.metrics.Migration(m)
	}
}

// dbSizeHuman formats a database file size for debug log lines.
func dbSizeHuman(n int64) string {
	return humanize.Bytes(uint64(n))
}
