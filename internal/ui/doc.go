// Package ui is the interactive terminal front end of depot, built on
// Bubble Tea.
//
// One screen per resource is shown at a time. Each screen keeps its own
// table controller, so search, filters, sort and paging survive switching
// away and back. The model subscribes to the list and detail caches and
// re-renders when a key it shows changes; fetches and mutations run as
// commands off the UI goroutine.
//
// Key bindings are listed in keys.go and in the ? help overlay.
package ui
