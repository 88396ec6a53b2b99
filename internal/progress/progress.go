// Package progress renders a build progress bar. A nil *Bar ignores all
// calls, which is what callers get when progress output is disabled.
package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

type Bar struct {
	bar *progressbar.ProgressBar
	max int
}

// New returns a bar writing to w, or nil if enabled is false.
func New(enabled bool, w io.Writer, description string) *Bar {
	if !enabled {
		return nil
	}
	return &Bar{
		bar: progressbar.NewOptions(0,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		),
	}
}

// AddMax grows the total by n steps.
func (b *Bar) AddMax(n int) {
	if b == nil {
		return
	}
	b.max += n
	b.bar.ChangeMax(b.max)
}

func (b *Bar) Add(n int) {
	if b == nil {
		return
	}
	_ = b.bar.Add(n)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
}
