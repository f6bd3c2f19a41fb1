package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutDetailWidth is the minimum width to show the detail pane beside
	// the table; narrower terminals show it full screen.
	LayoutDetailWidth = 140
)

// Timing constants.
const (
	// DefaultUIInterval is the clock tick used for relative timestamps and
	// toast expiry.
	DefaultUIInterval = time.Second

	// ToastDuration is how long a mutation toast stays on screen.
	ToastDuration = 4 * time.Second

	// MutationTimeout bounds one create, update or delete request.
	MutationTimeout = 30 * time.Second
)
