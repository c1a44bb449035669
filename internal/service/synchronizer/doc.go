// Package synchronizer batches manifest mutations of several builds.
//
// Builds are grouped by their rendered manifest URL. On Flush every distinct
// manifest is fetched once, all mutations of its group are applied in
// registration order and the result is pushed once, so the number of round
// trips depends on the number of manifests rather than on the number of
// builds.
package synchronizer
