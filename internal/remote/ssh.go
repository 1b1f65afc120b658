package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig configures the native SSH transport.
type SSHConfig struct {
	IdentityFile string
	// KnownHosts lists known_hosts files; "~/" is expanded. Empty means
	// ~/.ssh/known_hosts.
	KnownHosts []string
	// Insecure skips host key verification.
	Insecure    bool
	Port        int
	DialTimeout time.Duration
}

// SSHTransport speaks SSH directly instead of shelling out.
type SSHTransport struct {
	auth     []ssh.AuthMethod
	hostKeys ssh.HostKeyCallback
	port     int
	timeout  time.Duration
}

// NewSSHTransport loads the identity and host keys named by cfg.
func NewSSHTransport(cfg SSHConfig) (*SSHTransport, error) {
	if cfg.IdentityFile == "" {
		return nil, errors.New("ssh transport requires an identity file")
	}
	key, err := os.ReadFile(expandHome(cfg.IdentityFile))
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	var callback ssh.HostKeyCallback
	if cfg.Insecure {
		callback = ssh.InsecureIgnoreHostKey()
	} else {
		files := cfg.KnownHosts
		if len(files) == 0 {
			files = []string{"~/.ssh/known_hosts"}
		}
		expanded := make([]string, len(files))
		for i, f := range files {
			expanded[i] = expandHome(f)
		}
		callback, err = knownhosts.New(expanded...)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &SSHTransport{
		auth:     []ssh.AuthMethod{ssh.PublicKeys(signer)},
		hostKeys: callback,
		port:     port,
		timeout:  timeout,
	}, nil
}

func (t *SSHTransport) dial(ctx context.Context, user, host string) (*ssh.Client, error) {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, strconv.Itoa(t.port))
	}
	d := net.Dialer{Timeout: t.timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            t.auth,
		HostKeyCallback: t.hostKeys,
		Timeout:         t.timeout,
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// session opens a client and session and closes both when ctx ends.
func (t *SSHTransport) session(ctx context.Context, user, host string) (*ssh.Session, func(), error) {
	client, err := t.dial(ctx, user, host)
	if err != nil {
		return nil, nil, err
	}
	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			client.Close()
		case <-done:
		}
	}()
	closer := func() {
		close(done)
		sess.Close()
		client.Close()
	}
	return sess, closer, nil
}

func (t *SSHTransport) Exec(ctx context.Context, user, host, command string) ([]string, int, error) {
	sess, closer, err := t.session(ctx, user, host)
	if err != nil {
		return nil, TransportFailure, &TransportError{User: user, Host: host, Op: "ssh", Err: err}
	}
	defer closer()

	out, err := sess.CombinedOutput(command)
	lines := splitLines(out)
	if err == nil {
		return lines, 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return lines, exitErr.ExitStatus(), nil
	}
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return lines, TransportFailure, &TransportError{User: user, Host: host, Op: "ssh", Err: err}
}

// Copy sends localFile with the scp sink protocol.
func (t *SSHTransport) Copy(ctx context.Context, localFile, user, host, remoteFile string) ([]string, int, error) {
	fail := func(err error) ([]string, int, error) {
		return nil, TransportFailure, &TransportError{User: user, Host: host, Op: "scp", Err: err}
	}

	f, err := os.Open(localFile)
	if err != nil {
		return fail(err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fail(err)
	}

	sess, closer, err := t.session(ctx, user, host)
	if err != nil {
		return fail(err)
	}
	defer closer()

	stdin, err := sess.StdinPipe()
	if err != nil {
		return fail(err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return fail(err)
	}
	if err := sess.Start("scp -t " + ShellQuote(remoteFile)); err != nil {
		return fail(err)
	}

	acks := bufio.NewReader(stdout)
	if msg, err := readAck(acks); err != nil || msg != "" {
		return copyOutcome(msg, err, fail)
	}
	header := fmt.Sprintf("C%04o %d %s\n", info.Mode().Perm(), info.Size(), path.Base(filepath.ToSlash(remoteFile)))
	if _, err := io.WriteString(stdin, header); err != nil {
		return fail(err)
	}
	if msg, err := readAck(acks); err != nil || msg != "" {
		return copyOutcome(msg, err, fail)
	}
	if _, err := io.Copy(stdin, f); err != nil {
		return fail(err)
	}
	if _, err := stdin.Write([]byte{0}); err != nil {
		return fail(err)
	}
	if msg, err := readAck(acks); err != nil || msg != "" {
		return copyOutcome(msg, err, fail)
	}
	stdin.Close()

	if err := sess.Wait(); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return nil, exitErr.ExitStatus(), nil
		}
		return fail(err)
	}
	return nil, 0, nil
}

// readAck reads one scp acknowledgement. A non-empty message means the sink
// rejected the step.
func readAck(r *bufio.Reader) (string, error) {
	b, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	if b == 0 {
		return "", nil
	}
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	msg := strings.TrimSpace(line)
	if msg == "" {
		msg = "scp sink error"
	}
	return msg, nil
}

func copyOutcome(msg string, err error, fail func(error) ([]string, int, error)) ([]string, int, error) {
	if err != nil {
		return fail(err)
	}
	return []string{msg}, 1, nil
}

func splitLines(out []byte) []string {
	text := strings.TrimRight(string(out), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	if u, err := user.Current(); err == nil {
		return filepath.Join(u.HomeDir, p[2:])
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, p[2:])
	}
	return p
}

// ShellQuote quotes s for a POSIX shell command line.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]{}!#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
