package progress_test

import (
	"io"
	"testing"

	"github.com/crate2gn/crate2gn/internal/progress"
)

func TestBar(t *testing.T) {
	bar := progress.NewWithWriter(io.Discard, 3, "generating", false)
	bar.Add(1)
	bar.Add(2)
	bar.Finish()
}

func TestNilBar(t *testing.T) {
	var bar *progress.Bar
	bar.Add(1)
	bar.Finish()
}
