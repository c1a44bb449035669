// Package build contains the Build value type: the identity of one release
// (platform, arch, channel, version) together with the local asset files that
// belong to it.
//
// A Build is constructed once per release from either a dash-separated id or
// a partial Build, defaulted from configuration, and then passed by value
// through the publish and remove pipelines.
package build
