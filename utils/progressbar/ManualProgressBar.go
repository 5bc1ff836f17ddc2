// Package progressbar implements functionality of printing a progress
// bar to the terminal window
package progressbar

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ManualProgressBar implement progress bar functionality that must
// be manually managed. That is, the Display() function must be called
// whenever an updated progress bar should be printed.
//
// ManualProgressBar does not use concurrency.
type ManualProgressBar struct {
	w               io.Writer
	description     string
	width           float64
	maxProgress     float64
	currentProgress float64
	bar             strings.Builder
	startTime       time.Time
}

// NewManualProgressBar returns a new ManualProgressBar which prints to
// w. The description is printed before the bar.
func NewManualProgressBar(w io.Writer, description string, width,
	max int) *ManualProgressBar {
	return &ManualProgressBar{
		w:           w,
		description: description,
		width:       float64(width),
		maxProgress: float64(max),
		startTime:   time.Now(),
	}
}

// Increment increments the interal progress counter. Each time an
// iteration is performed, Increment should be called.
func (p *ManualProgressBar) Increment() {
	if p.currentProgress < p.maxProgress {
		p.currentProgress++
	}
}

// Progress returns the fraction of iterations completed
func (p *ManualProgressBar) Progress() float64 {
	if p.maxProgress == 0 {
		return 1
	}
	return p.currentProgress / p.maxProgress
}

// String returns the current progress bar
func (p *ManualProgressBar) String() string {
	p.bar.Reset()
	if p.description != "" {
		p.bar.WriteString(p.description + " ")
	}
	p.bar.WriteString("|")

	filled := p.Progress() * p.width
	for i := 0.0; i < p.width; i++ {
		if i < filled {
			p.bar.WriteString("█")
		} else {
			p.bar.WriteString(" ")
		}
	}
	elapsed := time.Since(p.startTime).Truncate(time.Second)
	fmt.Fprintf(&p.bar, "| [%.2f%% | elapsed: %v]", p.Progress()*100,
		elapsed)

	return p.bar.String()
}

// Display prints the progress bar over the previously displayed bar
func (p *ManualProgressBar) Display() {
	fmt.Fprintf(p.w, "\r\033[K%v", p.String())
}

// Finish prints the progress bar followed by a newline, so that
// subsequent output is not overwritten
func (p *ManualProgressBar) Finish() {
	fmt.Fprintf(p.w, "\r\033[K%v\n", p.String())
}
