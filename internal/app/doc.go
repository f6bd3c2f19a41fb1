// Package app is the composition root of depot.
//
// Open loads the configuration, opens the log and the offline snapshot,
// and wires the API client, the list and detail caches and the mutation
// coordinator into a Session. The one-shot CLI commands use a Session
// directly; Run adds the background poller and hands the Session to the
// terminal UI.
//
// # Startup
//
//  1. Load ~/.config/depot/config.toml and apply flag overrides
//  2. Open the log (file for the TUI, stderr for commands)
//  3. Resolve the role from the flag, the config or the token claims
//  4. Open the snapshot database and seed the list cache from it
//  5. Declare which cached keys each resource's mutations invalidate
//
// # Data Flow
//
//	┌──────────────┐     ┌─────────────┐     ┌──────────────┐
//	│  ui / cli    │────▶│ collection  │────▶│  api.Client  │
//	└──────┬───────┘     │   stores    │     └──────────────┘
//	       │             └──────▲──────┘
//	       ▼                    │ invalidate
//	┌──────────────┐            │
//	│  mutation    │────────────┘
//	│ coordinator  │
//	└──────────────┘
//
// The poller revalidates watched keys at Config.PollInterval. Keys whose
// last fetch failed wait for a manual retry.
package app
