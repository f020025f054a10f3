package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"voicebatch/internal/logging"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiDim    = "\x1b[2m"
)

const logTimeLayout = "2006-01-02 15:04:05"

// Fields that only matter to machine consumers of the log file.
var hiddenFields = map[string]bool{
	logging.FieldEventType:     true,
	logging.FieldImpact:        true,
	logging.FieldTaskNum:       true,
	logging.FieldStage:         true,
	logging.FieldBatchID:       true,
	logging.FieldComponent:     true,
	logging.FieldCorrelationID: true,
}

var titleCaser = cases.Title(language.English)

// formatEvent renders one operator line: [time][task N] LEVEL message key=value...
func formatEvent(evt logging.LogEvent, colorize bool) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(evt.Timestamp.Local().Format(logTimeLayout))
	b.WriteString("]")
	if evt.TaskNum > 0 {
		fmt.Fprintf(&b, "[task %d]", evt.TaskNum)
	}
	b.WriteString(" ")

	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if colorize {
		if color := levelColor(level); color != "" {
			level = color + level + ansiReset
		}
	}
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(evt.Message)

	keys := make([]string, 0, len(evt.Fields))
	for key := range evt.Fields {
		if !hiddenFields[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		pair := fmt.Sprintf("%s=%s", key, quoteIfNeeded(evt.Fields[key]))
		if colorize {
			pair = ansiDim + pair + ansiReset
		}
		b.WriteString(" ")
		b.WriteString(pair)
	}
	return b.String()
}

func levelColor(level string) string {
	switch level {
	case "ERROR":
		return ansiRed
	case "WARN":
		return ansiYellow
	case "INFO":
		return ansiBlue
	default:
		return ""
	}
}

func quoteIfNeeded(value string) string {
	if value == "" || strings.ContainsAny(value, " \t\"=") {
		return fmt.Sprintf("%q", value)
	}
	return value
}

func stateLabel(state string, colorize bool) string {
	label := titleCaser.String(state)
	if !colorize {
		return label
	}
	switch state {
	case "done":
		return ansiGreen + label + ansiReset
	case "skipped":
		return ansiYellow + label + ansiReset
	default:
		return label
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
