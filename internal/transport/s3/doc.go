// Package s3 implements a Transport for Amazon S3 and S3-compatible storage.
//
// Objects are stored as <pathPrefix><idWithVersion>/<file> and manifests as
// <pathPrefix><metaFileName>. The bucket is created on Init when it does not
// exist yet.
package s3
