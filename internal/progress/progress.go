// Package progress shows a terminal progress bar while rule documents are
// generated.
package progress

import (
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Bar is a progress bar. A nil *Bar is valid and does nothing.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New returns a bar counting up to max. The bar is only drawn when visible is
// set; otherwise it still counts but prints nothing.
func New(max int, description string, visible bool) *Bar {
	return NewWithWriter(os.Stderr, max, description, visible)
}

func NewWithWriter(w io.Writer, max int, description string, visible bool) *Bar {
	return &Bar{
		bar: progressbar.NewOptions(max,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetVisibility(visible),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		),
	}
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

