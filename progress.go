package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressReporter receives the cumulative byte count of a running download.
type ProgressReporter interface {
	Begin(description string, total int64)
	Advance(written int64)
	Done()
}

type noopProgress struct{}

func (noopProgress) Begin(string, int64) {}
func (noopProgress) Advance(int64)       {}
func (noopProgress) Done()               {}

type barProgress struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
}

func NewBarProgress(writer io.Writer) *barProgress {
	return &barProgress{writer: writer}
}

// an unknown total renders as a spinner
func (p *barProgress) Begin(description string, total int64) {
	if total <= 0 {
		total = -1
	}
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionSetDescription(fmt.Sprintf("downloading %s", description)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.writer)
		}),
	)
}

func (p *barProgress) Advance(written int64) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Set64(written)
}

func (p *barProgress) Done() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}
