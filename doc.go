// Package scenecache is the caching and lifetime core of a renderer adapter.
//
// # Overview
//
// A scene traversal produces objects (meshes, curves, points, cameras,
// lights) together with resolved attribute blocks. Converting them into
// renderer-native nodes is expensive, and many objects in a production
// scene are identical. scenecache sits between the traversal and a
// renderer backend and makes sure that identical content is converted once:
//
//   - shader.Cache deduplicates shader networks by content hash.
//   - instance.Cache deduplicates geometry by content hash plus the
//     attributes that are baked into the converted node, and hands out
//     lightweight instance proxies that reference a shared, invisible master.
//   - handle.Object and handle.Light wrap the returned instances and carry
//     per-object transform and attribute state.
//   - session.Session owns both caches, exposes the construction entry
//     points and sweeps unused entries once per render cycle.
//
// # Concurrency
//
// Cache lookups may be made from any number of goroutines. Construction of
// a given key happens exactly once even under concurrent first access, and
// only callers asking for that key wait for it. Sweeps (ClearUnused) must
// not run concurrently with lookups or with an active render; the session
// calls them between traversal and render.
//
// # Logging
//
// Nothing is logged by default. Use SetLogger to route diagnostics to a
// slog.Logger.
package scenecache

// Version information
const (
	// Version is the current version of the library
	Version = "0.3.0"
)
