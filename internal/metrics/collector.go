// Package metrics records transfer job metrics and writes them in the
// Prometheus text format for a node-exporter textfile collector or a
// pushgateway sidecar.
package metrics

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	vm "github.com/VictoriaMetrics/metrics"

	"github.com/JonMunkholm/batchcsv/internal/core"
)

// Collector implements core.RunMetrics on a private metrics set, so
// metrics of one job never mix with another in the same process.
type Collector struct {
	set *vm.Set
}

// New creates an empty collector.
func New() *Collector {
	return &Collector{set: vm.NewSet()}
}

func name(metric string, phase core.Phase) string {
	return fmt.Sprintf(`batchcsv_%s{phase=%q}`, metric, string(phase))
}

// RecordsRead counts records pulled from a source.
func (c *Collector) RecordsRead(phase core.Phase, n int) {
	c.set.GetOrCreateCounter(name("records_read_total", phase)).Add(n)
}

// ChunkCommitted counts a committed chunk and its records.
func (c *Collector) ChunkCommitted(phase core.Phase, records int, took time.Duration) {
	c.set.GetOrCreateCounter(name("records_written_total", phase)).Add(records)
	c.set.GetOrCreateCounter(name("chunks_committed_total", phase)).Inc()
	c.set.GetOrCreateHistogram(name("chunk_duration_seconds", phase)).Update(took.Seconds())
}

// ChunkRolledBack counts a chunk discarded by rollback.
func (c *Collector) ChunkRolledBack(phase core.Phase) {
	c.set.GetOrCreateCounter(name("chunks_rolled_back_total", phase)).Inc()
}

// PhaseFinished records the outcome and duration of a phase.
func (c *Collector) PhaseFinished(phase core.Phase, state core.State, took time.Duration) {
	c.set.GetOrCreateFloatCounter(name("phase_duration_seconds", phase)).Add(took.Seconds())
	metric := fmt.Sprintf(`batchcsv_phase_runs_total{phase=%q,state=%q}`, string(phase), string(state))
	c.set.GetOrCreateCounter(metric).Inc()
}

// WritePrometheus writes all collected metrics followed by process metrics.
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
	vm.WriteProcessMetrics(w)
}

// WriteFile writes the metrics to path atomically, via a temp file in the
// same directory and a rename.
func (c *Collector) WriteFile(path string) error {
	var buf bytes.Buffer
	c.WritePrometheus(&buf)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".metrics-*")
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("metrics: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

var _ core.RunMetrics = (*Collector)(nil)
