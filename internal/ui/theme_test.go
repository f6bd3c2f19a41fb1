package ui

import (
	"testing"

	"github.com/five82/depot/internal/screens"
)

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 3 {
		t.Fatalf("ThemeNames() returned %d names, want 3", len(names))
	}
	if names[0] != "Nightfox" || names[1] != "Kanagawa" || names[2] != "Slate" {
		t.Fatalf("ThemeNames() = %v", names)
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Nightfox"); got != "Kanagawa" {
		t.Fatalf("NextTheme(Nightfox) = %q, want Kanagawa", got)
	}
	if got := NextTheme("Slate"); got != "Nightfox" {
		t.Fatalf("NextTheme(Slate) = %q, want Nightfox", got)
	}
	if got := NextTheme("Unknown"); got != "Nightfox" {
		t.Fatalf("NextTheme(Unknown) = %q, want Nightfox", got)
	}
}

func TestGetTheme_FallsBack(t *testing.T) {
	if got := GetTheme("Slate").Name; got != "Slate" {
		t.Fatalf("GetTheme(Slate).Name = %q", got)
	}
	if got := GetTheme("Dracula").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(Dracula).Name = %q, want Nightfox fallback", got)
	}
}

func TestStatusColors_CoverStockStatuses(t *testing.T) {
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		if th.StatusColors["out of stock"] != th.Danger {
			t.Fatalf("%s: out of stock = %q, want danger", name, th.StatusColors["out of stock"])
		}
		if th.StatusColors["low stock"] != th.Warning {
			t.Fatalf("%s: low stock = %q, want warning", name, th.StatusColors["low stock"])
		}
		if th.StatusColors["in stock"] != th.Success {
			t.Fatalf("%s: in stock = %q, want success", name, th.StatusColors["in stock"])
		}
	}
}

func TestStatusStyle_CaseInsensitive(t *testing.T) {
	th := GetTheme("Nightfox")
	styles := th.Styles()
	got := styles.StatusStyle(" " + screens.StatusLowStock + " ").GetBackground()
	want := styles.StatusStyle("low stock").GetBackground()
	if got != want {
		t.Fatalf("StatusStyle background = %v, want %v", got, want)
	}
	if unknown := styles.StatusStyle("mystery").GetBackground(); unknown == want {
		t.Fatalf("unknown status should fall back to muted")
	}
}
