// Package memory implements an in-process Transport.
//
// Nothing leaves the process: uploads, manifest pushes and removals are kept
// in memory and recorded, so dry runs and tests can exercise the full
// publish pipeline and inspect every call made to the backend.
package memory
