// Package config owns the configuration snapshot of one workspace folder.
//
// A Config is an immutable view of the folder's "deploy" settings section.
// A Manager replaces it wholesale on every reload:
//
//	mgr := config.NewManager(folder, loader.NewStore(),
//	    config.WithPublisher(func(next, prev *config.Config) { ... }),
//	)
//	switch mgr.Reload(ctx, true) {
//	case config.Reloaded:  // snapshot swapped, publisher called
//	case config.Deferred:  // another reload was running, retry scheduled
//	case config.Skipped:   // busy without retry, cancelled or closed
//	}
//
// Reloads never overlap. A reload requested while one is in flight is either
// dropped or retried after a fixed delay, bounded by a retry.Policy, so N
// overlapping requests may collapse into fewer actual loads. Only convergence
// to the latest settings matters.
//
// Sub-packages:
//
//   - loader: reads the deploy section from TOML, YAML or editor settings files
//   - notify: ordered observer list with per-observer failure isolation
//   - schema: advisory JSON Schema validation of the deploy section
//   - tree: clone/merge helpers for map[string]any settings trees
package config
