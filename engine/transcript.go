package engine

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/agentflow/core"
)

const transcriptHeader = "### Step "

var transcriptHeaderLine = regexp.MustCompile(`^### Step (\d+): (.+) \(([a-z]+)\)$`)

// FormatTranscript renders an event log as human readable markdown, one
// section per event:
//
//	### Step 1: Analyser (update)
//	The question needs a web page.
//
// Content lines that would read as a section header are escaped with a
// leading backslash.
func FormatTranscript(events []core.UpdateEvent) string {
	var b strings.Builder
	for i, ev := range events {
		index := i + 1
		if ev.Metadata != nil && ev.Metadata.StepIndex > 0 {
			index = ev.Metadata.StepIndex
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s%d: %s (%s)\n", transcriptHeader, index, ev.Step, ev.Type)
		for _, line := range strings.Split(strings.TrimRight(ev.Content, "\n"), "\n") {
			if strings.HasPrefix(line, transcriptHeader) || strings.HasPrefix(line, `\`) {
				line = `\` + line
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ParseTranscript reads a transcript produced by FormatTranscript back into
// events. Step names, types, indices and order are preserved.
func ParseTranscript(text string) ([]core.UpdateEvent, error) {
	var (
		events  []core.UpdateEvent
		current *core.UpdateEvent
		lines   []string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimRight(strings.Join(lines, "\n"), "\n")
		events = append(events, *current)
		current, lines = nil, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if m := transcriptHeaderLine.FindStringSubmatch(line); m != nil {
			flush()
			index, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid step index %q", lineNo, m[1])
			}
			current = &core.UpdateEvent{
				Step:     m[2],
				Type:     core.EventType(m[3]),
				Metadata: &core.UpdateMetadata{StepIndex: index},
			}
			continue
		}

		if current == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return nil, fmt.Errorf("line %d: content before first step header", lineNo)
		}

		if strings.HasPrefix(line, `\`) {
			line = line[1:]
		}
		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	flush()

	return events, nil
}
