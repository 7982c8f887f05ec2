package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	banner  = "═══════════════════════════════════════════════════════════════════════════════\n"
	divider = "───────────────────────────────────────────────────────────────────────────────\n"
)

// SummaryConfig holds run details that the collector does not track.
type SummaryConfig struct {
	// Command is the backend command line
	Command string

	// FinalReason is the message of the backend-error event, if one was emitted
	FinalReason string

	// ListenAddr is the HTTP endpoint address
	ListenAddr string

	// OutputErrors counts known failure markers in the backend's recent output
	OutputErrors map[string]int
}

// FormatExitSummary formats the collector summary for display at exit.
func FormatExitSummary(s *Summary, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(banner)
	b.WriteString("                          desktop-shell Exit Summary\n")
	b.WriteString(banner + "\n")

	if s == nil {
		s = &Summary{}
	}

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(s.Duration))
	if cfg.Command != "" {
		fmt.Fprintf(&b, "Backend Command:        %s\n", cfg.Command)
	}
	if s.LastOutcome != "" {
		fmt.Fprintf(&b, "Final Outcome:          %s\n", s.LastOutcome)
	}
	b.WriteString("\n")

	if cfg.FinalReason != "" {
		b.WriteString("⚠️  BACKEND ERROR: " + cfg.FinalReason + "\n\n")
	}

	// Lifecycle
	if s.TotalStarts > 0 || s.TotalRestarts > 0 {
		section(&b, "Lifecycle")
		fmt.Fprintf(&b, "  Total Starts:         %d\n", s.TotalStarts)
		fmt.Fprintf(&b, "  Total Restarts:       %d\n", s.TotalRestarts)
		fmt.Fprintf(&b, "  Events Emitted:       %s\n", FormatNumber(s.EventsEmitted))
		if s.EventsDropped > 0 {
			fmt.Fprintf(&b, "  Events Dropped:       %s\n", FormatNumber(s.EventsDropped))
		}
		b.WriteString("\n")
	}

	// Uptime distribution
	if s.UptimeP50 > 0 || s.UptimeP95 > 0 {
		section(&b, "Uptime Distribution")
		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatDuration(s.UptimeP50))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatDuration(s.UptimeP95))
		fmt.Fprintf(&b, "  P99:                  %s\n", FormatDuration(s.UptimeP99))
		b.WriteString("\n")
	}

	if len(s.Outcomes) > 0 {
		section(&b, "Outcomes")
		names := make([]string, 0, len(s.Outcomes))
		for name := range s.Outcomes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %-20s %d\n", name, s.Outcomes[name])
		}
		b.WriteString("\n")
	}

	if len(s.ExitCodes) > 0 {
		section(&b, "Exit Codes")
		codes := make([]int, 0, len(s.ExitCodes))
		for code := range s.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(&b, "  %3d %-16s %d\n", code, exitCodeLabel(code), s.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if len(cfg.OutputErrors) > 0 {
		section(&b, "Backend Output Errors")
		patterns := make([]string, 0, len(cfg.OutputErrors))
		for p := range cfg.OutputErrors {
			patterns = append(patterns, p)
		}
		sort.Strings(patterns)
		for _, p := range patterns {
			fmt.Fprintf(&b, "  %-28s %d\n", p, cfg.OutputErrors[p])
		}
		b.WriteString("\n")
	}

	if cfg.ListenAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.ListenAddr)
	}

	b.WriteString(banner)

	return b.String()
}

func section(b *strings.Builder, title string) {
	pad := (len([]rune(divider)) - 1 - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(divider)
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(divider + "\n")
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 2:
		return "(usage)"
	case 130:
		return "(SIGINT)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}
