// Package local implements a Transport that publishes into a directory.
//
// Files land in outPath/<idWithVersion>/ and manifests in
// outPath/<metaFileName>. The directory can be served by any static web
// server; remoteUrl should point at it.
package local
