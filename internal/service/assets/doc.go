// Package assets locates the local files of a build in the dist directory.
//
// Every platform-arch pair has install, update and metaFile templates; each
// template is an ordered list of filename masks with {name}, {productName}
// and {version} placeholders. The first mask whose file exists wins. The
// package also discovers every build present in the dist directory and
// computes checksums of artifacts.
package assets
