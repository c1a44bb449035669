package ssh

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"os/exec"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"
)

const (
	testUser     = "deploy"
	testPassword = "secret"
)

// testServer is an in-process SSH server that runs exec requests with the local shell.
type testServer struct {
	// addr is the listening host:port.
	addr string
	// clientKey is accepted for public key authentication.
	clientKey ed25519.PrivateKey
}

// newTestServer starts a server that accepts testPassword and the generated client key.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("the test server needs a POSIX shell")
	}

	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	hostSigner, err := gossh.NewSignerFromKey(hostKey)
	require.NoError(t, err)

	_, clientKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	clientSigner, err := gossh.NewSignerFromKey(clientKey)
	require.NoError(t, err)

	authorized := clientSigner.PublicKey().Marshal()

	serverConfig := &gossh.ServerConfig{
		PasswordCallback: func(meta gossh.ConnMetadata, password []byte) (*gossh.Permissions, error) {
			if meta.User() == testUser && string(password) == testPassword {
				return &gossh.Permissions{}, nil
			}

			return nil, errors.New("access denied")
		},
		PublicKeyCallback: func(meta gossh.ConnMetadata, key gossh.PublicKey) (*gossh.Permissions, error) {
			if meta.User() == testUser && bytes.Equal(key.Marshal(), authorized) {
				return &gossh.Permissions{}, nil
			}

			return nil, errors.New("unknown key")
		},
	}
	serverConfig.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = listener.Close()
	})

	go func() {
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				return
			}

			go serveConn(conn, serverConfig)
		}
	}()

	return &testServer{addr: listener.Addr().String(), clientKey: clientKey}
}

// serveConn completes the handshake and serves session channels.
func serveConn(conn net.Conn, cfg *gossh.ServerConfig) {
	serverConn, channels, requests, err := gossh.NewServerConn(conn, cfg)
	if err != nil {
		_ = conn.Close()

		return
	}

	defer func() {
		_ = serverConn.Close()
	}()

	go gossh.DiscardRequests(requests)

	for newChannel := range channels {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(gossh.UnknownChannelType, "only sessions are supported")

			continue
		}

		channel, channelRequests, acceptErr := newChannel.Accept()
		if acceptErr != nil {
			continue
		}

		go serveSession(channel, channelRequests)
	}
}

// serveSession runs the first exec request with sh and reports its exit status.
func serveSession(channel gossh.Channel, requests <-chan *gossh.Request) {
	defer func() {
		_ = channel.Close()
	}()

	for request := range requests {
		if request.Type != "exec" {
			_ = request.Reply(false, nil)

			continue
		}

		var payload struct{ Command string }
		if err := gossh.Unmarshal(request.Payload, &payload); err != nil {
			_ = request.Reply(false, nil)

			return
		}

		_ = request.Reply(true, nil)

		cmd := exec.Command("sh", "-c", payload.Command) //nolint:gosec
		cmd.Stdin = channel
		cmd.Stdout = channel
		cmd.Stderr = channel.Stderr()

		var status uint32

		if err := cmd.Run(); err != nil {
			status = 255

			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				status = uint32(exitErr.ExitCode()) //nolint:gosec
			}
		}

		_, _ = channel.SendRequest("exit-status", false, gossh.Marshal(struct{ Status uint32 }{status}))

		return
	}
}
