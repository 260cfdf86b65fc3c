package flow

import (
	"regexp"
	"strings"
)

// HandoffPrefix starts a text delegation directive line.
const HandoffPrefix = "HANDOFF:"

var handoffLine = regexp.MustCompile(`(?i)^\s*\**\s*handoff\s*:\s*\**\s*(.+?)\s*\**\s*$`)

// ParseHandoff extracts a text delegation directive. Every directive line is
// removed from the returned text; the last one names the target.
func ParseHandoff(text string) (clean, target string, ok bool) {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if m := handoffLine.FindStringSubmatch(line); m != nil {
			target = strings.Trim(m[1], " \t`\"'.")
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), target, target != ""
}
