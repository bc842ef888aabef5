package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// ProgressBar shows how many units of work have passed or failed so far.
type ProgressBar struct {
	bar   *progressbar.ProgressBar
	title string
}

// NewProgressBar creates a progress bar on stderr for count units of work.
func NewProgressBar(count int, title string) *ProgressBar {
	return newProgressBar(os.Stderr, count, title)
}

func newProgressBar(w io.Writer, count int, title string) *ProgressBar {
	p := &ProgressBar{title: title}
	p.bar = progressbar.NewOptions(count,
		progressbar.OptionSetDescription(p.describe(0, 0)),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(w),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return p
}

func (p *ProgressBar) describe(succeeded, failed int) string {
	return color.CyanString("%s: ", p.title) +
		color.GreenString("[passed: %d", succeeded) +
		" | " +
		color.RedString("failed: %d]", failed)
}

// Update sets the bar to succeeded+failed units done.
func (p *ProgressBar) Update(succeeded, failed int) {
	_ = p.bar.Set(succeeded + failed)
	p.bar.Describe(p.describe(succeeded, failed))
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	_ = p.bar.Finish()
}
