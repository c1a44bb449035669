// Package transport defines the storage contract every hosting backend
// satisfies and the Base type backends embed.
//
// A Transport is owned by one command run. Its lifecycle is Init, then
// optional BeforeUpload/BeforeRemove, any number of operations, then
// AfterUpload/AfterRemove and finally Close, which always runs.
//
// Base normalises the common options (remoteUrl, metaFileName, metaFileUrl),
// renders {platform}/{arch}/{channel} templates and fetches manifests over
// HTTP; backends override what their storage does differently.
package transport
