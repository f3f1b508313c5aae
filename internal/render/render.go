// Package render writes the live view of a streaming turn: reasoning in
// magenta, the answer in green, and a spinner while the request is in
// flight. The engine works identically with no renderer attached.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	headColor   = color.New(color.FgCyan, color.Bold)
	ruleColor   = color.New(color.FgCyan)
	thinkHead   = color.New(color.FgMagenta, color.Bold)
	thinkColor  = color.New(color.FgMagenta)
	answerHead  = color.New(color.FgGreen, color.Bold)
	answerColor = color.New(color.FgGreen)
	okColor     = color.New(color.FgGreen, color.Bold)
	failColor   = color.New(color.FgRed, color.Bold)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
	dimColor    = color.New(color.FgHiBlack)
	plainColor  = color.New(color.FgWhite)
)

// DisableColor turns off ANSI styling process-wide.
func DisableColor() { color.NoColor = true }

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Renderer produces the interactive view. Quiet suppresses everything except
// verdict lines; ShowThinking controls whether reasoning fragments are
// echoed live. AnswerLabel is the header before answer text, "[RESPONSE]"
// unless the mode wants another (chat uses the speaker name).
type Renderer struct {
	Out          io.Writer
	Quiet        bool
	ShowThinking bool
	AnswerLabel  string
}

// NewRenderer returns a renderer writing to out.
func NewRenderer(out io.Writer, quiet, showThinking bool) *Renderer {
	return &Renderer{Out: out, Quiet: quiet, ShowThinking: showThinking, AnswerLabel: "[RESPONSE]"}
}

// TurnView returns the live sink for one exchange. Each turn gets a fresh
// view; the transition flags inside are presentation state only.
func (r *Renderer) TurnView() *TurnView {
	return &TurnView{r: r}
}

// TurnView streams one turn's fragments to the terminal.
type TurnView struct {
	r             *Renderer
	thinkingShown bool
	answerStarted bool
}

// ReasoningFragment echoes reasoning text in magenta, printing the section
// header before the first fragment.
func (v *TurnView) ReasoningFragment(text string) {
	if v.r.Quiet || !v.r.ShowThinking {
		return
	}
	if !v.thinkingShown {
		thinkHead.Fprint(v.r.Out, "[THINKING] ")
		v.thinkingShown = true
	}
	thinkColor.Fprint(v.r.Out, text)
}

// AnswerFragment echoes answer text in green. The section header prints once,
// on the first fragment.
func (v *TurnView) AnswerFragment(text string) {
	if v.r.Quiet {
		return
	}
	if !v.answerStarted {
		if v.thinkingShown {
			fmt.Fprint(v.r.Out, "\n\n")
		}
		label := v.r.AnswerLabel
		if label == "" {
			label = "[RESPONSE]"
		}
		answerHead.Fprint(v.r.Out, label+" ")
		v.answerStarted = true
	}
	answerColor.Fprint(v.r.Out, text)
}

// RedactedBlock notes an opaque reasoning block.
func (v *TurnView) RedactedBlock() {
	if v.r.Quiet {
		return
	}
	if !v.thinkingShown {
		thinkHead.Fprint(v.r.Out, "[THINKING] ")
		v.thinkingShown = true
	}
	warnColor.Fprint(v.r.Out, "[REDACTED THINKING BLOCK] ")
}

// Finish ends the live view with a blank line once anything streamed.
func (v *TurnView) Finish() {
	if v.r.Quiet {
		return
	}
	if v.thinkingShown || v.answerStarted {
		fmt.Fprint(v.r.Out, "\n\n")
	}
}

// Rule prints a separator line.
func (r *Renderer) Rule(n int) {
	if r.Quiet {
		return
	}
	ruleColor.Fprintln(r.Out, strings.Repeat("=", n))
}

// Divider prints a lighter separator line.
func (r *Renderer) Divider(n int) {
	if r.Quiet {
		return
	}
	ruleColor.Fprintln(r.Out, strings.Repeat("-", n))
}

// Prompt prints an input label without a trailing newline.
func (r *Renderer) Prompt(label string) {
	answerHead.Fprint(r.Out, label)
}

// Headline prints a bold cyan section title.
func (r *Renderer) Headline(text string) {
	if r.Quiet {
		return
	}
	headColor.Fprintln(r.Out, text)
}

// Field prints an aligned "name: value" detail line.
func (r *Renderer) Field(name string, format string, args ...any) {
	if r.Quiet {
		return
	}
	plainColor.Fprintf(r.Out, "  %s: ", name)
	warnColor.Fprintf(r.Out, format, args...)
	fmt.Fprintln(r.Out)
}

// Verdict prints PASSED or FAILED. It prints even in quiet mode; quiet means
// verdict-only, not silent.
func (r *Renderer) Verdict(label string, passed bool) {
	if passed {
		okColor.Fprintf(r.Out, "%s: PASSED\n", label)
	} else {
		failColor.Fprintf(r.Out, "%s: FAILED\n", label)
	}
}

// CheckOK prints a green [OK] checklist line.
func (r *Renderer) CheckOK(format string, args ...any) {
	if r.Quiet {
		return
	}
	okColor.Fprint(r.Out, "  [OK] ")
	plainColor.Fprintf(r.Out, format, args...)
	fmt.Fprintln(r.Out)
}

// CheckFail prints a red [--] checklist line.
func (r *Renderer) CheckFail(format string, args ...any) {
	if r.Quiet {
		return
	}
	failColor.Fprint(r.Out, "  [--] ")
	plainColor.Fprintf(r.Out, format, args...)
	fmt.Fprintln(r.Out)
}

// CheckWarn prints a yellow checklist line with the caller's marker, for
// states that are neither pass nor fail ("[??]", "[!!]", "[--]").
func (r *Renderer) CheckWarn(marker string, format string, args ...any) {
	if r.Quiet {
		return
	}
	warnColor.Fprintf(r.Out, "  %s ", marker)
	plainColor.Fprintf(r.Out, format, args...)
	fmt.Fprintln(r.Out)
}

// Info prints a plain status line.
func (r *Renderer) Info(format string, args ...any) {
	if r.Quiet {
		return
	}
	fmt.Fprintf(r.Out, format+"\n", args...)
}

// Note prints a de-emphasized line.
func (r *Renderer) Note(format string, args ...any) {
	if r.Quiet {
		return
	}
	dimColor.Fprintf(r.Out, format+"\n", args...)
}

// Warn prints a yellow warning line, quiet or not.
func (r *Renderer) Warn(format string, args ...any) {
	warnColor.Fprintf(r.Out, format+"\n", args...)
}

// Error prints a red error line, quiet or not.
func (r *Renderer) Error(format string, args ...any) {
	errColor.Fprintf(r.Out, format+"\n", args...)
}
