package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"captiondesk/internal/events"
)

// wakeup wakes a waiter whenever the bus publishes. Sinks run on the
// publishing goroutine, so the send never blocks.
type wakeup struct {
	ch chan struct{}
}

func watchBus(bus *events.Bus) *wakeup {
	s := &wakeup{ch: make(chan struct{}, 1)}
	bus.OnPublish(func(events.Event) { s.poke() })
	return s
}

// poke wakes the waiter without blocking.
func (s *wakeup) poke() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// until calls check after every published event until it reports done.
func (s *wakeup) until(ctx context.Context, check func() bool) error {
	for {
		if check() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ch:
		}
	}
}

// reporter renders progress as a bar on terminals and as plain lines
// otherwise.
type reporter struct {
	out  io.Writer
	bar  *progressbar.ProgressBar
	last string
}

func newReporter(out io.Writer, title string) *reporter {
	r := &reporter{out: out}
	if isTerminal(out) {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(title),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionClearOnFinish(),
		)
	}
	return r
}

// update shows percent (when known) and a status line.
func (r *reporter) update(percent *int, line string) {
	if r.bar != nil {
		if line != "" {
			r.bar.Describe(line)
		}
		if percent != nil {
			_ = r.bar.Set(*percent)
		}
		return
	}
	line = strings.TrimSpace(line)
	if percent != nil {
		line = strings.TrimRight(fmt.Sprintf("%3d%% %s", *percent, line), " ")
	}
	if line == "" || line == r.last {
		return
	}
	r.last = line
	fmt.Fprintln(r.out, line)
}

func (r *reporter) finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// byteCounter formats "12 MB / 40 MB" from optional counters.
func byteCounter(done, total *int64) string {
	switch {
	case done != nil && *done < 0:
		return ""
	case done != nil && total != nil && *total > 0:
		return humanize.Bytes(uint64(*done)) + " / " + humanize.Bytes(uint64(*total))
	case done != nil:
		return humanize.Bytes(uint64(*done))
	default:
		return ""
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
