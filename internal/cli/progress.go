package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/embydev/embytools/internal/installer"
)

// progressReporter renders download progress. On a terminal the percentage
// is redrawn in place; otherwise a line is written every 10%.
type progressReporter struct {
	w           io.Writer
	interactive bool
	lastDecile  int64
	finished    bool
}

// newProgress returns a ProgressFunc writing to w, or nil when disabled.
func newProgress(w io.Writer, disabled bool) installer.ProgressFunc {
	if disabled {
		return nil
	}
	p := &progressReporter{w: w, interactive: isTerminal(w)}
	return p.report
}

func (p *progressReporter) report(received, total int64) {
	if total <= 0 || p.finished {
		return
	}
	if received > total {
		received = total
	}
	pct := float64(received) / float64(total) * 100

	if p.interactive {
		fmt.Fprintf(p.w, "\rProgress: %.1f%%", pct)
		if received == total {
			fmt.Fprintln(p.w)
			p.finished = true
		}
		return
	}

	decile := received * 10 / total
	if decile > p.lastDecile {
		p.lastDecile = decile
		fmt.Fprintf(p.w, "Progress: %.1f%%\n", float64(decile)*10)
	}
	if received == total {
		p.finished = true
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
