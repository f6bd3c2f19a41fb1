package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Tail returns at most maxLines from the end of the file at path. A missing
// file yields no lines. maxLines <= 0 reads the whole file.
func Tail(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count, idx := 0, 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// LineLevel extracts the level of a line written by either slog handler.
// ok is false for lines that carry no level.
func LineLevel(line string) (slog.Level, bool) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var rec struct {
			Level string `json:"level"`
		}
		if err := json.Unmarshal([]byte(trimmed), &rec); err != nil || rec.Level == "" {
			return 0, false
		}
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(rec.Level)); err != nil {
			return 0, false
		}
		return lvl, true
	}
	for _, field := range strings.Fields(trimmed) {
		name, value, found := strings.Cut(field, "=")
		if !found || name != "level" {
			continue
		}
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err != nil {
			return 0, false
		}
		return lvl, true
	}
	return 0, false
}

// FilterLevel keeps lines at or above min. Lines without a level are kept
// so multi-line output is not lost.
func FilterLevel(lines []string, min slog.Level) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if lvl, ok := LineLevel(line); ok && lvl < min {
			continue
		}
		out = append(out, line)
	}
	return out
}
