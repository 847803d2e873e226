package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/abdul-hamid-achik/apiscan/packages/core/runner"
)

type progressTracker struct {
	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	w      io.Writer
	passed int
	failed int
}

func newProgressTracker(total int, w io.Writer) *progressTracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(describe(0, 0)),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &progressTracker{bar: bar, w: w}
}

func (p *progressTracker) observe(res *runner.RequestResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if res.NoFailure {
		p.passed++
	} else {
		p.failed++
	}
	p.bar.Describe(describe(p.passed, p.failed))
	_ = p.bar.Add(1)
}

func (p *progressTracker) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}

func describe(passed, failed int) string {
	return color.CyanString("Running requests: ") +
		color.GreenString("[passed: %d", passed) +
		" | " +
		color.RedString("failed: %d]", failed)
}
