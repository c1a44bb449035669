// Package manifest models the JSON document polled by auto-update clients.
//
// A Manifest maps version-less build ids to entries (update/install URLs,
// version and free-form fields). Documents are edited with sjson so that keys
// written by other tools keep their order and formatting, and every edit
// returns a new Manifest. FetchResult is the tagged outcome of reading a
// manifest from a hosting backend.
package manifest
