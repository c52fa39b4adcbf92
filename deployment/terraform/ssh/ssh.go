// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package ssh is a simple wrapper around an ssh.Client
// which implements utilities to be performed with a remote server.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/mattermost/logstack-deployer/deployment/provision"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

const defaultDialTimeout = 30 * time.Second

// DialerConfig holds the settings used to open connections.
type DialerConfig struct {
	// Timeout bounds the TCP dial and the SSH handshake. Zero means 30s.
	Timeout time.Duration
	// HostKeyCallback verifies the server host key. If nil, any key is
	// accepted since provisioned hosts are freshly created.
	HostKeyCallback ssh.HostKeyCallback
}

// Dialer opens SSH sessions to provisioning targets.
// It implements provision.Connector.
type Dialer struct {
	cfg DialerConfig
}

// NewDialer returns a Dialer with the given configuration.
func NewDialer(cfg DialerConfig) *Dialer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDialTimeout
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	return &Dialer{cfg: cfg}
}

// Connect dials the target and authenticates as username. Problems with
// the local credentials are marked as permanent, while network and
// handshake failures are left retryable since hosts that are still
// booting refuse connections or reject keys for a while.
func (d *Dialer) Connect(ctx context.Context, target provision.Target, username string) (provision.Session, error) {
	auth, release, err := authMethod(target.KeyPath)
	if err != nil {
		return nil, provision.Permanent(err)
	}
	// Signing only happens during the handshake.
	defer release()

	config := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: d.cfg.HostKeyCallback,
		Timeout:         d.cfg.Timeout,
	}

	addr := target.Addr()
	dialer := net.Dialer{Timeout: d.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	// The handshake doesn't take a context, so a deadline bounds it instead.
	if err := conn.SetDeadline(time.Now().Add(d.cfg.Timeout)); err != nil {
		conn.Close()
		return nil, err
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return nil, err
	}

	return &Client{client: ssh.NewClient(sshConn, chans, reqs), addr: addr}, nil
}

// authMethod returns the auth method for keyPath, falling back to the ssh
// agent when it's empty. release closes the agent connection, if any.
func authMethod(keyPath string) (ssh.AuthMethod, func(), error) {
	if keyPath == "" {
		sock := os.Getenv("SSH_AUTH_SOCK")
		if sock == "" {
			return nil, nil, errors.New("no key path given and SSH_AUTH_SOCK is not set")
		}
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to ssh agent: %w", err)
		}
		release := func() { _ = conn.Close() }
		return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), release, nil
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse private key %s: %w", keyPath, err)
	}
	return ssh.PublicKeys(signer), func() {}, nil
}

// Client is a wrapper type over a ssh connection
// that takes care of creating a channel and running
// commands in a single method.
type Client struct {
	client *ssh.Client
	addr   string
}

// Run runs a given command in a new ssh session and collects its output.
// If ctx is done before the command returns, the remote process is killed.
func (sshc *Client) Run(ctx context.Context, cmd string) (provision.CommandResult, error) {
	var res provision.CommandResult

	sess, err := sshc.client.NewSession()
	if err != nil {
		return res, fmt.Errorf("failed to open session on %s: %w", sshc.addr, err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- sess.Run(cmd)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()
		<-done
		return res, ctx.Err()
	}

	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.Bytes()

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitStatus = exitErr.ExitStatus()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("failed to run command on %s: %w", sshc.addr, err)
	}
	return res, nil
}

// Transfer uploads the local file at src to dst on the remote host,
// preserving its permission bits.
func (sshc *Client) Transfer(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	sc, err := sftp.NewClient(sshc.client)
	if err != nil {
		return fmt.Errorf("failed to start sftp on %s: %w", sshc.addr, err)
	}
	defer sc.Close()

	if err := upload(sc, f, dst); err != nil {
		return err
	}
	return sc.Chmod(dst, info.Mode().Perm())
}

func upload(sc *sftp.Client, src io.Reader, dst string) error {
	f, err := sc.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

// Active reports whether the connection still responds to requests.
func (sshc *Client) Active() bool {
	_, _, err := sshc.client.SendRequest("keepalive@openssh.com", true, nil)
	return err == nil
}

// DialContextF returns a DialContext function that dials addresses through
// the ssh connection.
func (sshc *Client) DialContextF() func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return sshc.client.DialContext(ctx, network, addr)
	}
}

// Close closes the underlying connection.
func (sshc *Client) Close() error {
	return sshc.client.Close()
}
