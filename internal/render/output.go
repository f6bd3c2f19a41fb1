package render

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/five82/depot/internal/column"
	"github.com/five82/depot/internal/entity"
)

// Format is a CLI output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists the accepted values of --output.
var Formats = []Format{FormatTable, FormatJSON, FormatYAML}

// ParseFormat validates an --output value. Empty means table.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatTable, nil
	}
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
	return f, nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Table draws cells under the column labels with a rounded border. Cells are
// cut to each column's width hint when it has one.
func Table(cols column.Set, cells [][]string) string {
	headers := cols.Labels()
	rows := make([][]string, len(cells))
	for i, line := range cells {
		out := make([]string, len(line))
		for j, c := range line {
			if j < len(cols) && cols[j].Width > 0 {
				c = truncate(c, cols[j].Width)
			}
			out[j] = c
		}
		rows[i] = out
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width || width < 4 {
		return s
	}
	return string(r[:width-3]) + "..."
}

// WriteJSON writes v indented. json.Number values keep their exact text.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteYAML writes v as YAML. Numbers decoded as json.Number are emitted as
// plain YAML numbers rather than quoted strings.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(yamlNode(v)); err != nil {
		return err
	}
	return enc.Close()
}

func yamlNode(v any) *yaml.Node {
	switch val := v.(type) {
	case entity.Entity:
		return yamlNode(map[string]any(val))
	case []entity.Entity:
		items := make([]any, len(val))
		for i, e := range val {
			items[i] = map[string]any(e)
		}
		return yamlNode(items)
	case map[string]any:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				yamlNode(val[k]))
		}
		return n
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range val {
			n.Content = append(n.Content, yamlNode(item))
		}
		return n
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(val.String(), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: val.String()}
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	default:
		n := &yaml.Node{}
		if err := n.Encode(val); err != nil {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fmt.Sprint(val)}
		}
		return n
	}
}
