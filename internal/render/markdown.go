// Package render turns records and table views into terminal output:
// markdown detail documents rendered with glamour, bordered tables, and
// JSON or YAML for scripting.
package render

import (
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/five82/depot/internal/column"
	"github.com/five82/depot/internal/entity"
)

const (
	defaultMarkdownWidth = 80
	minMarkdownWidth     = 20
)

// TerminalWidth returns the current terminal width or a fallback when
// unavailable.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = defaultMarkdownWidth
	}
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if parsed, err := strconv.Atoi(cols); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Markdown lays out one record: scalar fields in a two-column table keyed
// by dotted path, then one table per array of objects.
func Markdown(title string, e entity.Entity) string {
	var b strings.Builder
	if title != "" {
		b.WriteString("# ")
		b.WriteString(escape(title))
		b.WriteString("\n\n")
	}

	flat := entity.Flatten(e)
	keys := fieldOrder(flat)

	var lists []string
	b.WriteString("| Field | Value |\n| --- | --- |\n")
	for _, k := range keys {
		if arr, ok := flat[k].([]any); ok && hasObjects(arr) {
			lists = append(lists, k)
			continue
		}
		b.WriteString("| ")
		b.WriteString(escape(k))
		b.WriteString(" | ")
		b.WriteString(escape(cell(flat[k])))
		b.WriteString(" |\n")
	}

	for _, k := range lists {
		b.WriteString("\n## ")
		b.WriteString(escape(k))
		b.WriteString("\n\n")
		writeList(&b, flat[k].([]any))
	}
	return b.String()
}

// fieldOrder puts id first, then top-level fields, then nested ones, each
// group alphabetical.
func fieldOrder(flat map[string]any) []string {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if a == "id" || b == "id" {
			switch {
			case a == b:
				return 0
			case a == "id":
				return -1
			default:
				return 1
			}
		}
		da, db := strings.Count(a, "."), strings.Count(b, ".")
		if da != db {
			return da - db
		}
		return strings.Compare(a, b)
	})
	return keys
}

func hasObjects(arr []any) bool {
	for _, v := range arr {
		if _, ok := v.(map[string]any); ok {
			return true
		}
	}
	return false
}

func writeList(b *strings.Builder, arr []any) {
	rows := make([]map[string]any, 0, len(arr))
	seen := map[string]bool{}
	var cols []string
	for _, v := range arr {
		obj, ok := v.(map[string]any)
		if !ok {
			continue
		}
		flat := entity.Flatten(entity.Entity(obj))
		for k := range flat {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
		rows = append(rows, flat)
	}
	cols = fieldOrder(toSet(cols))

	b.WriteString("| ")
	b.WriteString(strings.Join(escapeAll(cols), " | "))
	b.WriteString(" |\n|")
	b.WriteString(strings.Repeat(" --- |", len(cols)))
	b.WriteString("\n")
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = escape(cell(row[c]))
		}
		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}
}

func toSet(keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = nil
	}
	return out
}

func cell(v any) string {
	text := strings.TrimSpace(entity.Text(v))
	if text == "" {
		return column.Placeholder
	}
	return text
}

var mdEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

func escape(s string) string { return mdEscaper.Replace(s) }

func escapeAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = escape(s)
	}
	return out
}

// Glamour renders markdown wrapped at width. An empty style picks one from
// the terminal background; "notty" produces plain text.
func Glamour(text string, width int, style string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if width < minMarkdownWidth {
		width = minMarkdownWidth
	}

	styleOpt := glamour.WithAutoStyle()
	if style != "" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return "", err
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n"), nil
}
