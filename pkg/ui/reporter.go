package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Reporter receives the human-readable progress of a run. Console prints
// plain lines; the tui package renders the same events full screen.
type Reporter interface {
	FolderReady(path string, created bool)
	Warn(msg string, err error)
	HarvestProgress(iteration, found, total int)
	HarvestDone(state string, total, iterations int)
	DownloadStarted(total int)
	DownloadOutcome(index int, url, status string, err error)
	DownloadMilestone(stored, total int)
	Summary(stored int, folder string)
}

// Console writes progress lines to a writer
type Console struct {
	mu        sync.Mutex
	w         io.Writer
	quiet     bool
	startTime time.Time
}

// NewConsole creates a console reporter. In quiet mode only warnings
// and the final summary are printed.
func NewConsole(w io.Writer, quiet bool) *Console {
	return &Console{w: w, quiet: quiet, startTime: time.Now()}
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

func (c *Console) FolderReady(path string, created bool) {
	if c.quiet {
		return
	}
	if created {
		c.printf("%s %s\n", Green("Created folder:"), path)
	} else {
		c.printf("%s %s\n", Dim("Folder already exists:"), path)
	}
}

func (c *Console) Warn(msg string, err error) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	c.printf("%s\n", Yellow(msg))
}

func (c *Console) HarvestProgress(iteration, found, total int) {
	if c.quiet {
		return
	}
	c.printf("Scroll %d: Found %d unique images so far\n", iteration, total)
}

func (c *Console) HarvestDone(state string, total, iterations int) {
	if c.quiet {
		return
	}
	c.printf("%s %d unique images after %d iterations (%s)\n", Magenta("[HARVESTED]"), total, iterations, state)
}

func (c *Console) DownloadStarted(total int) {
	if c.quiet {
		return
	}
	c.printf("Downloading %d images...\n", total)
}

// DownloadOutcome prints failures only; skipped responses stay silent
func (c *Console) DownloadOutcome(index int, url, status string, err error) {
	if status != "failed" {
		return
	}
	c.printf("%s\n", Red(fmt.Sprintf("Error downloading image %d: %v", index, err)))
}

func (c *Console) DownloadMilestone(stored, total int) {
	if c.quiet {
		return
	}
	c.printf("Downloaded %d images...\n", stored)
}

func (c *Console) Summary(stored int, folder string) {
	elapsed := time.Since(c.startTime).Round(time.Second)
	c.printf("%s Successfully downloaded %d images to '%s'. %s\n",
		Green("Done!"), stored, folder, Dim(fmt.Sprintf("(%s)", elapsed)))
}
