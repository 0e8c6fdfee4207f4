package logsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/pithecene-io/tlink/iox"
	"github.com/pithecene-io/tlink/types"
)

// Remote is an authenticated file-transfer channel.
// Implementations must allow concurrent Get calls.
type Remote interface {
	// ReadDir lists a remote directory.
	ReadDir(ctx context.Context, dir string) ([]fs.FileInfo, error)
	// Get copies a remote file to localPath, reporting the running byte
	// count to progress. A partially written local file is removed on error.
	Get(ctx context.Context, remotePath, localPath string, progress func(transferred int64)) error
	// Close ends the channel and the connection beneath it.
	Close() error
}

// Dialer opens Remotes.
type Dialer interface {
	Dial(ctx context.Context, address string) (Remote, error)
}

// Credentials used for robot connections.
const (
	DefaultUsername = "lvuser"
	DefaultSSHPort  = 22
)

// SSHDialer opens SFTP channels over SSH with a fixed username and an empty
// password, offered both as password and keyboard-interactive auth.
type SSHDialer struct {
	Username string
	Port     int
	Dialer   *net.Dialer
}

// NewSSHDialer creates a dialer with the default username and port.
func NewSSHDialer() *SSHDialer {
	return &SSHDialer{Username: DefaultUsername, Port: DefaultSSHPort, Dialer: &net.Dialer{}}
}

func (d *SSHDialer) clientConfig() *ssh.ClientConfig {
	user := d.Username
	if user == "" {
		user = DefaultUsername
	}
	return &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(""),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				return make([]string, len(questions)), nil
			}),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
}

// Dial connects to address. The ctx deadline bounds the TCP connect and the
// SSH handshake.
func (d *SSHDialer) Dial(ctx context.Context, address string) (Remote, error) {
	port := d.Port
	if port <= 0 {
		port = DefaultSSHPort
	}
	target := net.JoinHostPort(address, strconv.Itoa(port))

	nd := d.Dialer
	if nd == nil {
		nd = &net.Dialer{}
	}
	conn, err := nd.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, types.NewLinkError(types.ErrConnect, "dial", target, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, target, d.clientConfig())
	if err != nil {
		_ = conn.Close()
		return nil, types.NewLinkError(types.ErrConnect, "handshake", target, err)
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(c, chans, reqs)

	sc, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, types.NewLinkError(types.ErrConnect, "sftp", target, err)
	}
	return NewSFTPRemote(sc, client), nil
}

// SFTPRemote is a Remote backed by an SFTP client.
type SFTPRemote struct {
	client *sftp.Client
	conn   io.Closer
}

// NewSFTPRemote wraps client. conn, if non-nil, is closed after the client.
func NewSFTPRemote(client *sftp.Client, conn io.Closer) *SFTPRemote {
	return &SFTPRemote{client: client, conn: conn}
}

// ReadDir lists dir.
func (r *SFTPRemote) ReadDir(ctx context.Context, dir string) ([]fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.client.ReadDir(dir)
}

// Get downloads remotePath to localPath.
func (r *SFTPRemote) Get(ctx context.Context, remotePath, localPath string, progress func(int64)) (err error) {
	src, err := r.client.Open(remotePath)
	if err != nil {
		return types.NewLinkError(types.ErrTransfer, "open", remotePath, err)
	}
	defer iox.DiscardClose(src)
	stop := context.AfterFunc(ctx, func() { _ = src.Close() })
	defer stop()

	dst, err := os.Create(localPath)
	if err != nil {
		return types.NewLinkError(types.ErrFileSystem, "create", localPath, err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = types.NewLinkError(types.ErrFileSystem, "close", localPath, cerr)
		}
		if err != nil {
			_ = os.Remove(localPath)
		}
	}()

	pw := iox.NewProgressWriter(dst, progress)
	if _, err = io.Copy(pw, iox.ContextReader(ctx, src)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return types.NewLinkError(types.ErrTransfer, "get", remotePath, err)
	}
	return nil
}

// Close ends the SFTP session and its connection.
func (r *SFTPRemote) Close() error {
	err := r.client.Close()
	if r.conn != nil {
		if cerr := r.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("close sftp: %w", err)
	}
	return nil
}

var (
	_ Remote = (*SFTPRemote)(nil)
	_ Dialer = (*SSHDialer)(nil)
)
