package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Transport holds the options of every hosting backend. Each backend reads the fields it needs.
type Transport struct {
	// Module is the backend name: local, memory, s3, minio, github, ssh.
	Module string `yaml:"module" json:"module" toml:"module"`
	// RemoteURL is the public base URL of uploaded files.
	RemoteURL string `yaml:"remoteUrl,omitempty" json:"remoteUrl,omitempty" toml:"remoteUrl,omitempty"`
	// MetaFileURL is the public, possibly templated, URL of the manifest.
	MetaFileURL string `yaml:"metaFileUrl,omitempty" json:"metaFileUrl,omitempty" toml:"metaFileUrl,omitempty"`
	// MetaFileName is the templated manifest file name relative to the hosting root.
	MetaFileName string `yaml:"metaFileName,omitempty" json:"metaFileName,omitempty" toml:"metaFileName,omitempty"`

	// OutPath is the target directory of the local backend.
	OutPath string `yaml:"outPath,omitempty" json:"outPath,omitempty" toml:"outPath,omitempty"`

	// Bucket is the S3/MinIO bucket name.
	Bucket string `yaml:"bucket,omitempty" json:"bucket,omitempty" toml:"bucket,omitempty"`
	// Region is the S3/MinIO region.
	Region string `yaml:"region,omitempty" json:"region,omitempty" toml:"region,omitempty"`
	// Endpoint overrides the S3 endpoint or sets the MinIO host.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" toml:"endpoint,omitempty"`
	// ForcePathStyle switches S3 to path-style addressing.
	ForcePathStyle bool `yaml:"forcePathStyle,omitempty" json:"forcePathStyle,omitempty" toml:"forcePathStyle,omitempty"`
	// Insecure disables TLS for MinIO.
	Insecure bool `yaml:"insecure,omitempty" json:"insecure,omitempty" toml:"insecure,omitempty"`
	// PathPrefix is prepended to every object key.
	PathPrefix string `yaml:"pathPrefix,omitempty" json:"pathPrefix,omitempty" toml:"pathPrefix,omitempty"`
	// ACL is the canned ACL applied to uploaded S3 objects.
	ACL string `yaml:"acl,omitempty" json:"acl,omitempty" toml:"acl,omitempty"`
	// AccessKeyID is the S3/MinIO access key.
	AccessKeyID string `yaml:"accessKeyId,omitempty" json:"accessKeyId,omitempty" toml:"accessKeyId,omitempty"`
	// SecretAccessKey is the S3/MinIO secret key.
	SecretAccessKey string `yaml:"secretAccessKey,omitempty" json:"secretAccessKey,omitempty" toml:"secretAccessKey,omitempty"`

	// Repository is the GitHub repository in owner/repo form.
	Repository string `yaml:"repository,omitempty" json:"repository,omitempty" toml:"repository,omitempty"`
	// Token is the GitHub API token.
	Token string `yaml:"token,omitempty" json:"token,omitempty" toml:"token,omitempty"`
	// MetaFilePath is the manifest path inside the GitHub repository.
	MetaFilePath string `yaml:"metaFilePath,omitempty" json:"metaFilePath,omitempty" toml:"metaFilePath,omitempty"`
	// APIURL points the GitHub backend at a GitHub Enterprise instance.
	APIURL string `yaml:"apiUrl,omitempty" json:"apiUrl,omitempty" toml:"apiUrl,omitempty"`

	// Host is the SSH server in host or host:port form.
	Host string `yaml:"host,omitempty" json:"host,omitempty" toml:"host,omitempty"`
	// Username is the SSH login, the current user by default.
	Username string `yaml:"username,omitempty" json:"username,omitempty" toml:"username,omitempty"`
	// Password enables SSH password authentication.
	Password string `yaml:"password,omitempty" json:"password,omitempty" toml:"password,omitempty"`
	// PrivateKeyPath is the SSH private key file, ~/.ssh/id_rsa by default.
	PrivateKeyPath string `yaml:"privateKeyPath,omitempty" json:"privateKeyPath,omitempty" toml:"privateKeyPath,omitempty"`
	// PrivateKey is a PEM encoded SSH private key that takes precedence over PrivateKeyPath.
	PrivateKey string `yaml:"privateKey,omitempty" json:"privateKey,omitempty" toml:"privateKey,omitempty"`
	// Passphrase decrypts an encrypted SSH private key.
	Passphrase string `yaml:"passphrase,omitempty" json:"passphrase,omitempty" toml:"passphrase,omitempty"`
	// KnownHostsPath enables host key verification against a known_hosts file.
	KnownHostsPath string `yaml:"knownHostsPath,omitempty" json:"knownHostsPath,omitempty" toml:"knownHostsPath,omitempty"`
	// RemotePath is the directory on the SSH server that remoteUrl serves.
	RemotePath string `yaml:"remotePath,omitempty" json:"remotePath,omitempty" toml:"remotePath,omitempty"`
	// AfterUploadCommand runs in RemotePath after a successful upload.
	AfterUploadCommand string `yaml:"afterUploadCommand,omitempty" json:"afterUploadCommand,omitempty" toml:"afterUploadCommand,omitempty"`
	// AfterRemoveCommand runs in RemotePath after builds are removed.
	AfterRemoveCommand string `yaml:"afterRemoveCommand,omitempty" json:"afterRemoveCommand,omitempty" toml:"afterRemoveCommand,omitempty"`
}

// errUnknownTransportOption is returned by Set for keys that no backend understands.
var errUnknownTransportOption = errors.New("unknown transport option")

// Set assigns a single option by its config key, as used by --transport-option key=value.
func (t *Transport) Set(key, value string) error {
	text := map[string]*string{
		"module":          &t.Module,
		"remoteUrl":       &t.RemoteURL,
		"metaFileUrl":     &t.MetaFileURL,
		"metaFileName":    &t.MetaFileName,
		"outPath":         &t.OutPath,
		"bucket":          &t.Bucket,
		"region":          &t.Region,
		"endpoint":        &t.Endpoint,
		"pathPrefix":      &t.PathPrefix,
		"acl":             &t.ACL,
		"accessKeyId":     &t.AccessKeyID,
		"secretAccessKey": &t.SecretAccessKey,
		"repository":      &t.Repository,
		"token":           &t.Token,
		"metaFilePath":    &t.MetaFilePath,
		"apiUrl":          &t.APIURL,

		"host":               &t.Host,
		"username":           &t.Username,
		"password":           &t.Password,
		"privateKeyPath":     &t.PrivateKeyPath,
		"privateKey":         &t.PrivateKey,
		"passphrase":         &t.Passphrase,
		"knownHostsPath":     &t.KnownHostsPath,
		"remotePath":         &t.RemotePath,
		"afterUploadCommand": &t.AfterUploadCommand,
		"afterRemoveCommand": &t.AfterRemoveCommand,
	}

	if field, ok := text[key]; ok {
		*field = value

		return nil
	}

	flags := map[string]*bool{
		"forcePathStyle": &t.ForcePathStyle,
		"insecure":       &t.Insecure,
	}

	if field, ok := flags[key]; ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("transport option %s: %w", key, err)
		}

		*field = parsed

		return nil
	}

	return fmt.Errorf("%w: %s", errUnknownTransportOption, key)
}
