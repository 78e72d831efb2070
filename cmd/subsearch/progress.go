package main

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// progress renders transcript fetching as a progress bar when w is a terminal.
type progress struct {
	w       io.Writer
	visible bool
	bar     *progressbar.ProgressBar
}

func newProgress(w io.Writer) *progress {
	return &progress{w: w, visible: isTerminal(w)}
}

func (p *progress) Start(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("Fetching subtitles"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetVisibility(p.visible),
	)
}

func (p *progress) Increment() {
	_ = p.bar.Add(1)
}

func (p *progress) Finish() {
	_ = p.bar.Finish()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) // #nosec G115 -- file descriptors fit in int
}
