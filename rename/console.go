package rename

import (
	"io"
	"os"

	"github.com/fatih/color"
)

// Console prints per-file progress lines. These are product output, distinct
// from the diagnostic log file.
type Console struct {
	out    io.Writer
	cyan   *color.Color
	green  *color.Color
	yellow *color.Color
	bold   *color.Color
}

// NewConsole writes to w; nil means stdout. Color is governed globally by
// color.NoColor, which the CLI sets from TTY detection.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{
		out:    w,
		cyan:   color.New(color.FgCyan),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		bold:   color.New(color.Bold),
	}
}

func (c *Console) Processing(name string) {
	c.cyan.Fprintf(c.out, "Processing: %s\n", name)
}

func (c *Console) Renamed(from, to string) {
	c.green.Fprintf(c.out, "Renamed: %s -> %s\n", from, to)
}

func (c *Console) WouldRename(from, to string) {
	c.green.Fprintf(c.out, "Would rename: %s -> %s\n", from, to)
}

func (c *Console) Skipping(name, reason string) {
	c.yellow.Fprintf(c.out, "Skipping: %s (%s)\n", name, reason)
}

func (c *Console) Summary(s Stats) {
	c.bold.Fprintf(c.out, "Done: %d processed, %d renamed, %d skipped, %d failed\n",
		s.Processed, s.Renamed, s.Skipped, s.Failed)
}

