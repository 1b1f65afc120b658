package remote

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/shlex"

	"github.com/cloudera/llama-sub000/internal/runner"
)

// sshTransportExit is the status ssh(1) uses for its own failures.
const sshTransportExit = 255

// ExecConfig configures the ssh and scp binaries.
type ExecConfig struct {
	SSH            string
	SCP            string
	IdentityFile   string
	Port           int
	ConnectTimeout time.Duration
	// ExtraOptions are appended to both commands, split with shell rules.
	ExtraOptions string
}

// ExecTransport drives the system ssh and scp binaries.
type ExecTransport struct {
	cfg    ExecConfig
	runner runner.Runner
	extra  []string
}

// NewExecTransport validates cfg and returns a transport running through r.
func NewExecTransport(r runner.Runner, cfg ExecConfig) (*ExecTransport, error) {
	if cfg.SSH == "" {
		cfg.SSH = "ssh"
	}
	if cfg.SCP == "" {
		cfg.SCP = "scp"
	}
	extra, err := shlex.Split(cfg.ExtraOptions)
	if err != nil {
		return nil, fmt.Errorf("parse ssh options %q: %w", cfg.ExtraOptions, err)
	}
	return &ExecTransport{cfg: cfg, runner: r, extra: extra}, nil
}

func (t *ExecTransport) commonArgs(portFlag string) []string {
	args := []string{"-o", "BatchMode=yes"}
	if t.cfg.ConnectTimeout > 0 {
		secs := int(t.cfg.ConnectTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		args = append(args, "-o", "ConnectTimeout="+strconv.Itoa(secs))
	}
	if t.cfg.IdentityFile != "" {
		args = append(args, "-i", t.cfg.IdentityFile)
	}
	if t.cfg.Port > 0 {
		args = append(args, portFlag, strconv.Itoa(t.cfg.Port))
	}
	return append(args, t.extra...)
}

// Args returns the ssh argument list for command on host.
func (t *ExecTransport) Args(user, host, command string) []string {
	return append(t.commonArgs("-p"), target(user, host), command)
}

// CopyArgs returns the scp argument list for a copy to host.
func (t *ExecTransport) CopyArgs(localFile, user, host, remoteFile string) []string {
	return append(t.commonArgs("-P"), localFile, target(user, host)+":"+remoteFile)
}

func (t *ExecTransport) Exec(ctx context.Context, user, host, command string) ([]string, int, error) {
	res, err := t.runner.Run(ctx, t.cfg.SSH, t.Args(user, host, command), runner.Options{})
	output := runner.Lines(res.Stdout, res.Stderr)
	code, terr := status(res, err)
	if terr == nil && code == sshTransportExit {
		terr = fmt.Errorf("ssh exited with status %d", code)
	}
	if terr != nil {
		return output, TransportFailure, &TransportError{User: user, Host: host, Op: "ssh", Err: terr}
	}
	return output, code, nil
}

func (t *ExecTransport) Copy(ctx context.Context, localFile, user, host, remoteFile string) ([]string, int, error) {
	res, err := t.runner.Run(ctx, t.cfg.SCP, t.CopyArgs(localFile, user, host, remoteFile), runner.Options{})
	output := runner.Lines(res.Stdout, res.Stderr)
	code, terr := status(res, err)
	if terr != nil {
		return output, TransportFailure, &TransportError{User: user, Host: host, Op: "scp", Err: terr}
	}
	return output, code, nil
}

// status resolves the exit code of a finished command. A command that never
// ran, or was killed, yields an error.
func status(res runner.Result, err error) (int, error) {
	if err == nil {
		return res.ExitCode, nil
	}
	code, ok := runner.ExitCode(err)
	if !ok {
		return TransportFailure, err
	}
	return code, nil
}

func target(user, host string) string {
	if user == "" {
		return host
	}
	return user + "@" + host
}
