// Package manifest implements persistence for update manifests.
//
// The FileRepository stores and loads manifests as pretty-printed JSON on a
// go-billy filesystem, so the same code serves the local disk and in-memory
// filesystems used in tests.
package manifest
