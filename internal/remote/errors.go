package remote

import (
	"fmt"
	"strings"
)

// TransportFailure is the exit status recorded when the transport itself
// failed and the command never produced a status of its own.
const TransportFailure = -1

// TransportError reports a connection, authentication or process start
// failure talking to a host.
type TransportError struct {
	User string
	Host string
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	target := e.Host
	if e.User != "" {
		target = e.User + "@" + e.Host
	}
	return fmt.Sprintf("%s %s: %v", e.Op, target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteCommandError records a command that ran on the host and exited
// nonzero.
type RemoteCommandError struct {
	Host       string
	Command    string
	ExitStatus int
}

func (e *RemoteCommandError) Error() string {
	return fmt.Sprintf("%s: %q exited with status %d", e.Host, e.Command, e.ExitStatus)
}

// MultiHostCopyError lists the hosts a copy could not reach within the
// retry budget, in the order they were requested.
type MultiHostCopyError struct {
	LocalFile  string
	RemoteFile string
	Hosts      []string
}

func (e *MultiHostCopyError) Error() string {
	return fmt.Sprintf("copy %s to %s failed on %d host(s): %s",
		e.LocalFile, e.RemoteFile, len(e.Hosts), strings.Join(e.Hosts, ", "))
}
