// Package progressbar renders upload progress in the terminal.
package progressbar

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"github.com/oshokin/release-publisher/internal/transport"
)

// bufferSize decouples uploads from rendering.
const bufferSize = 64

// Print renders progress events until the channel is closed.
// Every file gets its own bar; raw output mode prints plain lines instead.
func Print(progress <-chan transport.Progress) {
	if pterm.RawOutput {
		printRaw(os.Stderr, progress)

		return
	}

	var (
		bar  *pterm.ProgressbarPrinter
		name string
	)

	stop := func() {
		if bar == nil {
			return
		}

		if bar.Current < bar.Total {
			bar.Add(bar.Total - bar.Current)
		}

		_, _ = bar.Stop()
		bar = nil
	}

	for update := range progress {
		if update.Total == 0 {
			// we need total to properly print status
			continue
		}

		if bar == nil || update.Name != name {
			stop()

			name = update.Name
			bar, _ = pterm.DefaultProgressbar.
				WithTitle(fmt.Sprintf("%s (%s)", name, humanize.Bytes(uint64(update.Total)))).
				WithTotal(int(update.Total)).
				Start()
		}

		if bar != nil && int(update.Transferred) > bar.Current {
			bar.Add(int(update.Transferred) - bar.Current)
		}
	}

	stop()
}

// printRaw writes one line per file to w when it completes.
func printRaw(w io.Writer, progress <-chan transport.Progress) {
	for update := range progress {
		if update.Total == 0 || update.Transferred < update.Total {
			continue
		}

		_, _ = fmt.Fprintf(w, "%s [%s/%s]\n",
			update.Name,
			humanize.Bytes(uint64(update.Transferred)),
			humanize.Bytes(uint64(update.Total)))
	}
}

// Track runs upload with a callback feeding the progress printer.
// When disabled the callback is nil and nothing is rendered.
func Track(enabled bool, upload func(progress transport.ProgressFunc) error) error {
	if !enabled {
		return upload(nil)
	}

	var (
		events = make(chan transport.Progress, bufferSize)
		done   = make(chan struct{})
	)

	go func() {
		defer close(done)

		Print(events)
	}()

	err := upload(func(p transport.Progress) {
		events <- p
	})

	close(events)
	<-done

	return err
}
