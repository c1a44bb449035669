package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/logger"
)

// defaultPrivateKeyPath is used when neither a password nor a key is configured.
const defaultPrivateKeyPath = "~/.ssh/id_rsa"

// errNoAuthMethod is returned when no credential can be loaded.
var errNoAuthMethod = errors.New("no ssh credentials: set transport.password, privateKey or privateKeyPath")

// ExitError is returned when a remote command exits with a non-zero status.
type ExitError struct {
	// Status is the exit status of the command.
	Status int
	// Stderr is the trimmed error output of the command.
	Stderr string
}

// Error implements error.
func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("remote command exited with status %d", e.Status)
	}

	return fmt.Sprintf("remote command exited with status %d: %s", e.Status, e.Stderr)
}

// runner executes shell commands on the remote host.
type runner interface {
	// run executes command with stdin attached and returns its standard output.
	run(ctx context.Context, command string, stdin io.Reader) ([]byte, error)
	// Close releases the connection.
	Close() error
}

// clientRunner opens one session per command on an SSH client.
type clientRunner struct {
	client *gossh.Client
}

// dial connects to addr and authenticates with cfg.
func dial(ctx context.Context, addr string, cfg *gossh.ClientConfig) (*clientRunner, error) {
	dialer := net.Dialer{Timeout: cfg.Timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	clientConn, channels, requests, err := gossh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	return &clientRunner{client: gossh.NewClient(clientConn, channels, requests)}, nil
}

// run executes command in a new session. The session is closed when ctx is done.
func (r *clientRunner) run(ctx context.Context, command string, stdin io.Reader) ([]byte, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open ssh session: %w", err)
	}

	defer func() {
		_ = session.Close()
	}()

	var stdout, stderr bytes.Buffer

	session.Stdin = stdin
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)

	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()

		return nil, ctx.Err()
	case err = <-done:
	}

	if err != nil {
		var exitErr *gossh.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), &ExitError{
				Status: exitErr.ExitStatus(),
				Stderr: strings.TrimSpace(stderr.String()),
			}
		}

		return stdout.Bytes(), fmt.Errorf("run remote command: %w", err)
	}

	return stdout.Bytes(), nil
}

// Close closes the SSH client.
func (r *clientRunner) Close() error {
	return r.client.Close()
}

// clientConfig builds the authentication and host key settings from the transport options.
func clientConfig(ctx context.Context, options config.Transport, username string) (*gossh.ClientConfig, error) {
	auth, err := authMethod(options)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := hostKeyCallback(ctx, options.KnownHostsPath)
	if err != nil {
		return nil, err
	}

	return &gossh.ClientConfig{
		User:            username,
		Auth:            []gossh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         dialTimeout,
	}, nil
}

// authMethod prefers the password, then the inline key, then the key file.
func authMethod(options config.Transport) (gossh.AuthMethod, error) {
	if options.Password != "" {
		return gossh.Password(options.Password), nil
	}

	pemBytes := []byte(options.PrivateKey)

	if len(pemBytes) == 0 {
		keyPath := options.PrivateKeyPath
		if keyPath == "" {
			keyPath = defaultPrivateKeyPath
		}

		keyPath, err := expandHome(keyPath)
		if err != nil {
			return nil, err
		}

		pemBytes, err = os.ReadFile(filepath.Clean(keyPath))
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", errNoAuthMethod, keyPath, err)
		}
	}

	signer, err := parsePrivateKey(pemBytes, options.Passphrase)
	if err != nil {
		return nil, err
	}

	return gossh.PublicKeys(signer), nil
}

// parsePrivateKey decodes a PEM key, decrypting it when passphrase is set.
func parsePrivateKey(pemBytes []byte, passphrase string) (gossh.Signer, error) {
	var (
		signer gossh.Signer
		err    error
	)

	if passphrase != "" {
		signer, err = gossh.ParsePrivateKeyWithPassphrase(pemBytes, []byte(passphrase))
	} else {
		signer, err = gossh.ParsePrivateKey(pemBytes)
	}

	if err != nil {
		return nil, fmt.Errorf("parse ssh private key: %w", err)
	}

	return signer, nil
}

// hostKeyCallback verifies host keys against knownHostsPath when it is set.
func hostKeyCallback(ctx context.Context, knownHostsPath string) (gossh.HostKeyCallback, error) {
	if knownHostsPath == "" {
		logger.Warn(ctx, "transport.knownHostsPath is not set, the host key of the server is not verified")

		return gossh.InsecureIgnoreHostKey(), nil //nolint:gosec
	}

	path, err := expandHome(knownHostsPath)
	if err != nil {
		return nil, err
	}

	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known hosts %s: %w", path, err)
	}

	return callback, nil
}

// expandHome replaces a leading ~ with the home directory of the current user.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// quote makes s a single shell word.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
