// Package minio implements a Transport for MinIO servers.
//
// The object layout matches the s3 backend: <pathPrefix><idWithVersion>/<file>
// for assets and <pathPrefix><metaFileName> for manifests.
package minio
