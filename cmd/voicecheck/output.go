package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kalambet/voicecheck/internal/campaign"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStep(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, fmt.Sprintf(format, args...))
}

// eventLine renders one campaign progress event as "[i/n] name: result".
func eventLine(ev campaign.Event) string {
	prefix := fmt.Sprintf("[%d/%d] %s", ev.Index, ev.Total, ev.Contact.FullName())
	result := ev.Summary()
	switch {
	case ev.Kind != campaign.EventProcessed:
		result = colorize(colorRed, result)
	case ev.Outcome != nil && ev.Outcome.Verified():
		result = colorize(colorGreen, result)
	default:
		result = colorize(colorYellow, result)
	}
	return prefix + ": " + result
}

func writeSummary(w io.Writer, s campaign.Summary) {
	row := func(label string, n int, rate float64, withRate bool) {
		if withRate {
			fmt.Fprintf(w, "  %-22s %5d  (%.2f%%)\n", label, n, rate)
			return
		}
		fmt.Fprintf(w, "  %-22s %5d\n", label, n)
	}
	fmt.Fprintln(w, colorize(colorBold, "Contacts"))
	row("total", s.TotalContacts, 0, false)
	row("pending", s.Pending, 0, false)
	row("completed", s.Completed, 0, false)
	row("to recall", s.ToRecall, 0, false)
	fmt.Fprintln(w, colorize(colorBold, "Calls"))
	row("total", s.TotalCalls, 0, false)
	row("consent given", s.ConsentGiven, s.ConsentRate, true)
	row("consent refused", s.ConsentRefused, 0, false)
	row("identity confirmed", s.IdentityConfirmed, s.IdentityRate, true)
	row("identity rejected", s.IdentityRejected, 0, false)
	row("no response", s.NoResponse, s.NoResponseRate, true)
	row("voicemail", s.Voicemail, 0, false)
	row("verified", s.Verified, s.SuccessRate, true)
}
