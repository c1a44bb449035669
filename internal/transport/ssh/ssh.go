package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/transport"
)

const (
	// Name is the transport module name of this backend.
	Name = "ssh"

	// defaultPort is used when transport.host has no port.
	defaultPort = "22"
	// dialTimeout limits the TCP connect and the SSH handshake.
	dialTimeout = 30 * time.Second
)

var (
	// ErrNotConnected is returned by operations called before Init.
	ErrNotConnected = errors.New("ssh transport is not initialized")
	// ErrUnsafeRemove is returned when a removal target is not a build directory.
	ErrUnsafeRemove = errors.New("refusing to remove a path that is not a build directory")

	// removableRegex matches the directory names RemoveResource may delete.
	removableRegex = regexp.MustCompile(`^\w+-\w+-\w+-v?\d+\.\d+\.\d+[\w.-]*$`)
)

// Transport publishes to a directory on a remote host over SSH.
type Transport struct {
	*transport.Base

	// addr is the host:port of the server.
	addr string
	// username is the SSH login.
	username string
	// remotePath is the publishing root on the server.
	remotePath string
	// connect opens the connection on Init.
	connect func(ctx context.Context) (runner, error)
	// runner is set by Init.
	runner runner
}

// New creates an SSH transport. The connection is opened on Init.
func New(cfg *config.Config) (*Transport, error) {
	base, err := transport.NewBase(cfg)
	if err != nil {
		return nil, err
	}

	options := base.Options()

	if options.RemoteURL == "" {
		return nil, fmt.Errorf("%w: transport.remoteUrl", transport.ErrMissingOption)
	}

	remotePath := strings.TrimSuffix(options.RemotePath, "/")
	if len(remotePath) < 2 {
		return nil, fmt.Errorf("%w: transport.remotePath must be a directory below /", transport.ErrMissingOption)
	}

	addr, err := address(options)
	if err != nil {
		return nil, err
	}

	username := options.Username
	if username == "" {
		current, userErr := user.Current()
		if userErr != nil {
			return nil, fmt.Errorf("%w: transport.username: %w", transport.ErrMissingOption, userErr)
		}

		username = current.Username
	}

	t := &Transport{
		Base:       base,
		addr:       addr,
		username:   username,
		remotePath: remotePath,
	}

	t.connect = func(ctx context.Context) (runner, error) {
		clientCfg, cfgErr := clientConfig(ctx, options, t.username)
		if cfgErr != nil {
			return nil, cfgErr
		}

		return dial(ctx, t.addr, clientCfg)
	}

	return t, nil
}

// address returns host:port from transport.host or the host of remoteUrl.
func address(options config.Transport) (string, error) {
	host := options.Host

	if host == "" {
		parsed, err := url.Parse(options.RemoteURL)
		if err != nil || parsed.Hostname() == "" {
			return "", fmt.Errorf("%w: transport.host", transport.ErrMissingOption)
		}

		host = parsed.Hostname()
	}

	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}

	return net.JoinHostPort(strings.Trim(host, "[]"), defaultPort), nil
}

// Init connects to the server.
func (t *Transport) Init(ctx context.Context) error {
	r, err := t.connect(ctx)
	if err != nil {
		return err
	}

	t.runner = r

	logger.DebugKV(ctx, "SSH connection opened", "address", t.addr, "user", t.username)

	return nil
}

// UploadFile streams a local file into remotePath/<idWithVersion>/.
func (t *Transport) UploadFile(
	ctx context.Context,
	localPath string,
	b build.Build,
	progress transport.ProgressFunc,
) (string, error) {
	source, err := os.Open(filepath.Clean(localPath))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}

	defer func() {
		_ = source.Close()
	}()

	info, err := source.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}

	target := path.Join(t.remotePath, b.IDWithVersion(), transport.NormalizeFileName(localPath))
	reader := transport.NewProgressReader(source, localPath, info.Size(), progress)

	if err = t.write(ctx, target, reader); err != nil {
		return "", err
	}

	logger.DebugKV(ctx, "File uploaded over SSH", "source", localPath, "target", target)

	return t.FileURL(localPath, b), nil
}

// PushMetaFile writes the manifest to remotePath/<metaFileName>.
func (t *Transport) PushMetaFile(ctx context.Context, m *manifest.Manifest, b build.Build) (string, error) {
	target := t.metaFilePath(b)

	if err := t.write(ctx, target, bytes.NewReader(m.Bytes())); err != nil {
		return "", err
	}

	return t.MetaFileURL(b), nil
}

// FetchMetaFile reads remotePath/<metaFileName>. A missing file means there is no manifest yet.
func (t *Transport) FetchMetaFile(ctx context.Context, b build.Build) manifest.FetchResult {
	target := t.metaFilePath(b)

	out, err := t.run(ctx, "if [ -f "+quote(target)+" ]; then cat "+quote(target)+"; fi", nil)
	if err != nil {
		return manifest.Failed(fmt.Errorf("read %s: %w", target, err))
	}

	if len(bytes.TrimSpace(out)) == 0 {
		return manifest.Empty()
	}

	m, err := manifest.Parse(out)
	if err != nil {
		return manifest.Failed(fmt.Errorf("parse %s: %w", target, err))
	}

	return manifest.Found(m)
}

// FetchBuildsList returns the directories of remotePath that look like build ids.
func (t *Transport) FetchBuildsList(ctx context.Context) ([]string, error) {
	out, err := t.run(ctx, "if [ -d "+quote(t.remotePath)+" ]; then ls -1F "+quote(t.remotePath)+"; fi", nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.remotePath, err)
	}

	var names []string

	for _, line := range strings.Split(string(out), "\n") {
		name, isDir := strings.CutSuffix(strings.TrimSpace(line), "/")
		if isDir {
			names = append(names, name)
		}
	}

	return transport.FilterBuildIDs(names), nil
}

// RemoveResource deletes remotePath/<id>. A missing directory is not an error.
func (t *Transport) RemoveResource(ctx context.Context, id string) error {
	if !removableRegex.MatchString(id) {
		return fmt.Errorf("%w: %s", ErrUnsafeRemove, id)
	}

	target := path.Join(t.remotePath, id)

	if _, err := t.run(ctx, "rm -rf "+quote(target), nil); err != nil {
		return fmt.Errorf("remove %s: %w", target, err)
	}

	return nil
}

// AfterUpload runs transport.afterUploadCommand in remotePath.
func (t *Transport) AfterUpload(ctx context.Context) error {
	return t.runHook(ctx, "afterUpload", t.Options().AfterUploadCommand)
}

// AfterRemove runs transport.afterRemoveCommand in remotePath.
func (t *Transport) AfterRemove(ctx context.Context) error {
	return t.runHook(ctx, "afterRemove", t.Options().AfterRemoveCommand)
}

// Close closes the connection if Init opened one.
func (t *Transport) Close(ctx context.Context) error {
	if t.runner == nil {
		return nil
	}

	err := t.runner.Close()
	t.runner = nil

	logger.Debug(ctx, "SSH connection closed")

	return err
}

// metaFilePath returns the manifest location on the server.
func (t *Transport) metaFilePath(b build.Build) string {
	return path.Join(t.remotePath, t.MetaFileName(b))
}

// write creates the parent directory of target and fills target from r.
func (t *Transport) write(ctx context.Context, target string, r io.Reader) error {
	command := "mkdir -p " + quote(path.Dir(target)) + " && cat > " + quote(target)

	if _, err := t.run(ctx, command, r); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	return nil
}

// runHook runs a configured command and logs its output.
func (t *Transport) runHook(ctx context.Context, hook, command string) error {
	if command == "" {
		return nil
	}

	ctx = logger.WithFields(ctx, "hook", hook, "command", command)

	out, err := t.run(ctx, "cd "+quote(t.remotePath)+" && "+command, nil)
	if err != nil {
		return fmt.Errorf("%s command: %w", hook, err)
	}

	if text := strings.TrimSpace(string(out)); text != "" {
		logger.Info(ctx, text)
	}

	logger.Debug(ctx, "Hook command completed")

	return nil
}

// run executes command on the open connection.
func (t *Transport) run(ctx context.Context, command string, stdin io.Reader) ([]byte, error) {
	if t.runner == nil {
		return nil, ErrNotConnected
	}

	logger.DebugKV(ctx, "Running remote command", "command", command)

	return t.runner.run(ctx, command, stdin)
}
