// Package github implements a Transport that publishes to GitHub Releases.
//
// Every build gets a release tagged with its versioned id; assets are
// uploaded to that release and the manifest is committed to the repository
// through the contents API. Removing a build deletes its release and tag.
package github
