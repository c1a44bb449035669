// Package ssh implements a Transport that publishes to a directory on a remote
// host over SSH.
//
// Files land in remotePath/<idWithVersion>/ and manifests in
// remotePath/<metaFileName>. Every operation runs a POSIX shell command in its
// own session, so the server needs sh, cat, ls and rm but no SFTP subsystem.
// remoteUrl should point at the web server that serves remotePath.
package ssh
