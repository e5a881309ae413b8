// Package backend defines the contract between the caches and a renderer.
//
// A Backend owns renderer-native nodes. The caches never look inside a node:
// they ask the backend to convert scene content, to create instance proxies
// for shared masters and to destroy nodes once nothing references them.
//
// Backends register themselves by name, following the database/sql driver
// pattern:
//
//	import _ "github.com/gogpu/scenecache/backend/memory"
//
//	b, err := backend.Get("memory")
//
// # Conversion results
//
// Converting an unsupported object is an expected outcome and is reported as
// a nil Node with a nil error. Errors are reserved for conversions that were
// attempted and failed (for example a shader that does not compile).
package backend
