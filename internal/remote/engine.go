// Package remote runs commands and copies files across a fleet of hosts with
// bounded parallelism and per-host retries.
package remote

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Operation names used in results, logs and metrics.
const (
	OpExec = "exec"
	OpCopy = "copy"
)

// Transport moves commands and files to a single host. A non-nil error means
// the transport failed; otherwise status is the remote exit status.
type Transport interface {
	Exec(ctx context.Context, user, host, command string) (output []string, status int, err error)
	Copy(ctx context.Context, localFile, user, host, remoteFile string) (output []string, status int, err error)
}

// ProgressReporter receives per-host notifications. Calls arrive from worker
// goroutines.
type ProgressReporter interface {
	HostStart(op, host string)
	HostDone(res Result)
}

// Options tunes a fleet operation.
type Options struct {
	// Retries is the number of attempts per host, at least one.
	Retries int
	// Parallelism is the number of workers, clamped to the host count.
	Parallelism int
	// Timeout bounds a single attempt when positive.
	Timeout  time.Duration
	Reporter ProgressReporter
}

// Result is the outcome for one host.
type Result struct {
	Op         string
	User       string
	Host       string
	Command    string
	LocalFile  string
	RemoteFile string
	Output     []string
	ExitStatus int
	Attempts   int
	Duration   time.Duration
	Err        error
}

// OK reports whether some attempt succeeded.
func (r Result) OK() bool {
	return r.Err == nil && r.ExitStatus == 0
}

// TransportFailed reports whether the last attempt failed in the transport.
func (r Result) TransportFailed() bool {
	return r.ExitStatus == TransportFailure
}

// Engine fans operations out over a transport.
type Engine struct {
	transport Transport
	log       *logrus.Logger
	metrics   *Metrics
}

// NewEngine returns an engine using t. log may be nil.
func NewEngine(t Transport, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Engine{transport: t, log: log, metrics: NewMetrics()}
}

// Metrics returns the engine's counters.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// WriteMetrics writes the engine's counters to path in the Prometheus text
// format.
func (e *Engine) WriteMetrics(path string) error {
	return e.metrics.WriteTextfile(path)
}

// RunOnHosts executes command as user on every host and returns one result
// per host once all workers have finished. Result order is unspecified.
func (e *Engine) RunOnHosts(ctx context.Context, user string, hosts []string, command string, opts Options) []Result {
	return e.fanOut(ctx, hosts, opts, func(host string) Result {
		return Result{Op: OpExec, User: user, Host: host, Command: command}
	}, func(ctx context.Context, host string) ([]string, int, error) {
		return e.transport.Exec(ctx, user, host, command)
	})
}

// CopyToHosts copies localFile to remoteFile on every host. Hosts that fail
// every attempt are reported together in a *MultiHostCopyError.
func (e *Engine) CopyToHosts(ctx context.Context, localFile, user string, hosts []string, remoteFile string, opts Options) ([]Result, error) {
	results := e.fanOut(ctx, hosts, opts, func(host string) Result {
		return Result{Op: OpCopy, User: user, Host: host, LocalFile: localFile, RemoteFile: remoteFile}
	}, func(ctx context.Context, host string) ([]string, int, error) {
		return e.transport.Copy(ctx, localFile, user, host, remoteFile)
	})

	byHost := ByHost(results)
	var failed []string
	for _, h := range hosts {
		if r, ok := byHost[h]; ok && !r.OK() {
			failed = append(failed, h)
		}
	}
	if len(failed) > 0 {
		return results, &MultiHostCopyError{LocalFile: localFile, RemoteFile: remoteFile, Hosts: failed}
	}
	return results, nil
}

type attemptFunc func(ctx context.Context, host string) ([]string, int, error)

func (e *Engine) fanOut(ctx context.Context, hosts []string, opts Options, seed func(string) Result, attempt attemptFunc) []Result {
	parts := Partition(hosts, opts.Parallelism)
	collected := make([][]Result, len(parts))

	var g errgroup.Group
	for i, part := range parts {
		g.Go(func() error {
			local := make([]Result, 0, len(part))
			for _, host := range part {
				local = append(local, e.runHost(ctx, seed(host), opts, attempt))
			}
			collected[i] = local
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Result, 0, len(hosts))
	for _, local := range collected {
		out = append(out, local...)
	}
	return out
}

func (e *Engine) runHost(ctx context.Context, res Result, opts Options, attempt attemptFunc) Result {
	retries := opts.Retries
	if retries < 1 {
		retries = 1
	}
	if opts.Reporter != nil {
		opts.Reporter.HostStart(res.Op, res.Host)
	}
	log := e.log.WithFields(logrus.Fields{"op": res.Op, "host": res.Host, "user": res.User})

	start := time.Now()
	for n := 1; n <= retries; n++ {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if opts.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		began := time.Now()
		output, status, err := attempt(actx, res.Host)
		cancel()

		res.Attempts = n
		res.Output = output
		outcome := "ok"
		switch {
		case err != nil:
			res.ExitStatus = TransportFailure
			res.Err = err
			outcome = "transport_error"
		case status != 0:
			res.ExitStatus = status
			res.Err = &RemoteCommandError{Host: res.Host, Command: describe(res), ExitStatus: status}
			outcome = "nonzero"
		default:
			res.ExitStatus = 0
			res.Err = nil
		}
		e.metrics.observeAttempt(res.Op, outcome, time.Since(began).Seconds())

		if res.Err == nil {
			log.WithField("attempt", n).Debug("remote attempt succeeded")
			break
		}
		log.WithField("attempt", n).WithError(res.Err).Warn("remote attempt failed")
		if ctx.Err() != nil {
			break
		}
	}
	res.Duration = time.Since(start)

	if !res.OK() {
		e.metrics.hostFailed(res.Op)
		log.WithField("attempts", res.Attempts).Error("host failed")
	}
	if opts.Reporter != nil {
		opts.Reporter.HostDone(res)
	}
	return res
}

func describe(r Result) string {
	if r.Op == OpCopy {
		return "copy " + r.LocalFile + " " + r.RemoteFile
	}
	return r.Command
}

// ByHost indexes results by host name.
func ByHost(results []Result) map[string]Result {
	out := make(map[string]Result, len(results))
	for _, r := range results {
		out[r.Host] = r
	}
	return out
}

// Failed returns the failed results in the order of hosts.
func Failed(hosts []string, results []Result) []Result {
	byHost := ByHost(results)
	var out []Result
	for _, h := range hosts {
		if r, ok := byHost[h]; ok && !r.OK() {
			out = append(out, r)
		}
	}
	return out
}
