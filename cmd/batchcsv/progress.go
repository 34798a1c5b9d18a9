package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/JonMunkholm/batchcsv/internal/core"
)

// progressReporter renders one progress bar per phase. A phase whose source
// reports its size tracks bytes; otherwise the bar counts records.
type progressReporter struct {
	w     io.Writer
	phase core.Phase
	total int64
	bar   *progressbar.ProgressBar
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w}
}

// OnProgress is a core.ProgressCallback.
func (r *progressReporter) OnProgress(p core.Progress) {
	if r.bar == nil || p.Phase != r.phase {
		r.start(p.Phase, p.BytesTotal)
	}

	if r.byBytes() {
		_ = r.bar.Set64(p.BytesRead)
	} else {
		_ = r.bar.Set(p.Written)
	}

	if p.State.Terminal() {
		if p.State == core.StateDone {
			_ = r.bar.Finish()
		} else {
			_ = r.bar.Exit()
			fmt.Fprintln(r.w)
		}
		r.bar = nil
	}
}

func (r *progressReporter) byBytes() bool {
	return r.total > 0
}

func (r *progressReporter) start(phase core.Phase, bytesTotal int64) {
	r.phase = phase
	r.total = bytesTotal

	opts := []progressbar.Option{
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription(string(phase)),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100 * time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(r.w)
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
	}

	limit := int64(-1)
	if r.byBytes() {
		limit = r.total
		opts = append(opts, progressbar.OptionShowBytes(true))
	}
	r.bar = progressbar.NewOptions64(limit, opts...)
}
