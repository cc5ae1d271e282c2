package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"
	Bold   = "\033[1m"
)

var (
	mu      sync.Mutex
	out     io.Writer = os.Stdout
	noColor           = os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd()))
)

// SetOutput redirects all output and disables colors when w is not stdout.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	if f, ok := w.(*os.File); ok {
		noColor = os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(f.Fd()))
	} else {
		noColor = true
	}
}

func color(c string) string {
	if noColor {
		return ""
	}
	return c
}

func PrintBanner(version string) {
	banner := `
  __                 _ _       _
 / _|_   _ _ __   __| | | __ _| |__
| |_| | | | '_ \ / _' | |/ _' | '_ \
|  _| |_| | | | | (_| | | (_| | |_) |
|_|  \__,_|_| |_|\__,_|_|\__,_|_.__/
`
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(out, color(Cyan)+banner+color(Reset))
	fmt.Fprintln(out, color(Gray)+"  "+version+" - FundMe & FunWithStorage deployment harness"+color(Reset))
	fmt.Fprintln(out)
}

func clearLine() {
	if !noColor {
		fmt.Fprint(out, "\r\033[K")
	}
}

func logLine(prefixColor, prefix, format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Fprintf(out, color(prefixColor)+prefix+color(Reset)+" "+format+"\n", a...)
}

func LogSuccess(format string, a ...any) {
	logLine(Green, "[SUCCESS]", format, a...)
}

func LogInfo(format string, a ...any) {
	logLine(Blue, "[INFO]", format, a...)
}

func LogWarn(format string, a ...any) {
	logLine(Yellow, "[WARN]", format, a...)
}

func LogError(format string, a ...any) {
	logLine(Red, "[ERROR]", format, a...)
}

// StartSpinner animates msg until the returned channel is closed. Nothing is
// drawn when colors are off.
func StartSpinner(msg string) chan struct{} {
	stop := make(chan struct{})
	if noColor {
		return stop
	}
	go func() {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		for i := 0; ; i++ {
			select {
			case <-stop:
				mu.Lock()
				clearLine()
				mu.Unlock()
				return
			default:
				mu.Lock()
				clearLine()
				fmt.Fprintf(out, Cyan+"%s %s"+Reset, frames[i%len(frames)], msg)
				mu.Unlock()
				time.Sleep(100 * time.Millisecond)
			}
		}
	}()
	return stop
}

// Row is one line of a two-or-more column table.
type Row []string

// PrintTable writes header and rows with padded columns.
func PrintTable(header Row, rows []Row) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i := 0; i < len(r) && i < len(widths); i++ {
			if len(r[i]) > widths[i] {
				widths[i] = len(r[i])
			}
		}
	}

	mu.Lock()
	defer mu.Unlock()
	writeRow := func(r Row) {
		cells := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(r) {
				cell = r[i]
			}
			cells[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
		}
		fmt.Fprintln(out, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
	fmt.Fprint(out, color(Bold))
	writeRow(header)
	fmt.Fprint(out, color(Reset))
	total := 0
	for _, w := range widths {
		total += w + 2
	}
	fmt.Fprintln(out, color(Gray)+strings.Repeat("─", total-2)+color(Reset))
	for _, r := range rows {
		writeRow(r)
	}
}

func PrintStats(title string, duration time.Duration, fields ...string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(out)
	fmt.Fprintln(out, color(Gray)+strings.Repeat("─", 50)+color(Reset))
	fmt.Fprintf(out, "%s in %s\n", title, duration.Round(time.Millisecond))
	if len(fields) > 0 {
		fmt.Fprintln(out, strings.Join(fields, " | "))
	}
	fmt.Fprintln(out, color(Gray)+strings.Repeat("─", 50)+color(Reset))
}
