// Package report renders operator-facing progress for pipeline runs.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/lynkia/deployer/internal/artifact"
	"github.com/lynkia/deployer/internal/pipeline"
)

// Console writes color-coded progress lines. It observes both pipeline
// stages and dependency install strategies.
type Console struct {
	w  io.Writer
	st styles
}

// NewConsole creates a console on w. When color is false all styling is
// dropped; when true, styling still degrades if w is not a terminal.
func NewConsole(w io.Writer, color bool) *Console {
	if w == nil {
		w = os.Stdout
	}
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Console{w: w, st: newStyles(r)}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Header prints the run title.
func (c *Console) Header(title, detail string) {
	line := c.st.title.Render(title)
	if detail != "" {
		line += " " + c.st.dim.Render(detail)
	}
	fmt.Fprintln(c.w, line)
}

// StageStarted implements pipeline.Listener.
func (c *Console) StageStarted(s pipeline.Stage) {
	fmt.Fprintf(c.w, "%s %s\n", c.st.active.Render(spinner), s.Title)
}

// StageSucceeded implements pipeline.Listener.
func (c *Console) StageSucceeded(s pipeline.Stage, elapsed time.Duration) {
	icon, style := c.st.statusIcon(true)
	fmt.Fprintf(c.w, "%s %s %s\n", style(icon), s.Title, c.st.dim.Render(formatDuration(elapsed)))
}

// StageFailed implements pipeline.Listener. Errors carrying remediation
// steps get them printed underneath.
func (c *Console) StageFailed(s pipeline.Stage, elapsed time.Duration, err error) {
	icon, style := c.st.statusIcon(false)
	fmt.Fprintf(c.w, "%s %s %s\n", style(icon), style(s.Title+" failed"), c.st.dim.Render(formatDuration(elapsed)))
	for _, line := range strings.Split(strings.TrimRight(err.Error(), "\n"), "\n") {
		fmt.Fprintf(c.w, "     %s\n", c.st.dim.Render(line))
	}

	var r interface{ Remediation() []string }
	if errors.As(err, &r) {
		c.Remediation(r.Remediation())
	}
}

// StrategyStarted implements deps.Listener.
func (c *Console) StrategyStarted(name string, attempt int) {
	fmt.Fprintf(c.w, "     %s %s install %s\n", c.st.active.Render(spinner), name, c.st.dim.Render(fmt.Sprintf("(attempt %d)", attempt)))
}

// StrategyFailed implements deps.Listener.
func (c *Console) StrategyFailed(name string, err error) {
	first, _, _ := strings.Cut(err.Error(), "\n")
	fmt.Fprintf(c.w, "     %s %s install failed: %s\n", c.st.failed.Render(crossMark), name, c.st.dim.Render(first))
}

// StrategySucceeded implements deps.Listener.
func (c *Console) StrategySucceeded(name string, degraded bool) {
	if !degraded {
		fmt.Fprintf(c.w, "     %s %s install succeeded\n", c.st.ready.Render(checkMark), name)
		return
	}
	fmt.Fprintf(c.w, "     %s %s install succeeded\n", c.st.warning.Render(warnMark), name)
	c.Warn("dependencies were installed for this machine, not the target runtime; native extensions may fail to load after deployment")
}

// Warn prints a highlighted warning.
func (c *Console) Warn(format string, args ...any) {
	fmt.Fprintf(c.w, "%s %s\n", c.st.warning.Render(warnMark), c.st.warning.Render("warning: "+fmt.Sprintf(format, args...)))
}

// Info prints a plain indented note.
func (c *Console) Info(format string, args ...any) {
	fmt.Fprintf(c.w, "     %s\n", fmt.Sprintf(format, args...))
}

// Skipped reports a stage that was not run.
func (c *Console) Skipped(title, reason string) {
	fmt.Fprintf(c.w, "%s %s %s\n", c.st.dim.Render(skipMark), title, c.st.dim.Render("("+reason+")"))
}

// Archive summarizes a written archive.
func (c *Console) Archive(path string, m *artifact.Manifest) {
	fmt.Fprintf(c.w, "     %s %s, %d files, %s\n",
		path,
		humanize.IBytes(uint64(m.Size)),
		len(m.Entries),
		c.st.dim.Render(m.Digest.Algorithm().String()+":"+m.ShortDigest(12)))
}

// Remediation prints the steps that fix a failed precondition.
func (c *Console) Remediation(steps []string) {
	if len(steps) == 0 {
		return
	}
	fmt.Fprintln(c.w, c.st.section.Render("  To fix:"))
	for _, s := range steps {
		fmt.Fprintf(c.w, "    %s\n", s)
	}
}

// Endpoint prints the deployed webhook URL.
func (c *Console) Endpoint(name, url string) {
	fmt.Fprintf(c.w, "     %s: %s\n", name, c.st.value.Render(url))
}

// Checklist prints the follow-up steps shown after a successful deploy.
func (c *Console) Checklist(endpoint string) {
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, c.st.section.Render("  Next steps"))
	for i, step := range FollowUp(endpoint) {
		fmt.Fprintf(c.w, "    %d. %s\n", i+1, step)
	}
}

// Tool prints one prerequisite check row.
func (c *Console) Tool(name, version string, found bool, detail string) {
	icon, style := c.st.statusIcon(found)
	line := fmt.Sprintf("%s %-10s", style(icon), name)
	if version != "" {
		line += " " + version
	}
	if detail != "" {
		line += " " + c.st.dim.Render(detail)
	}
	fmt.Fprintln(c.w, line)
}

// Done prints the closing line of a run.
func (c *Console) Done(err error, elapsed time.Duration) {
	if err == nil {
		fmt.Fprintf(c.w, "\n%s %s\n", c.st.ready.Render("Done"), c.st.dim.Render("in "+formatDuration(elapsed)))
		return
	}
	fmt.Fprintf(c.w, "\n%s %s\n", c.st.failed.Render("Failed"), c.st.dim.Render("after "+formatDuration(elapsed)))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
