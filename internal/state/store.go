// Package state persists per-tool installer state between phases and
// between installer invocations.
package state

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/mod/semver"

	"github.com/cloudera/llama-sub000/internal/roles"
	"github.com/cloudera/llama-sub000/internal/tools"
)

const (
	// Header opens the first line of every state file.
	Header = "installer-state"
	// FormatVersion is the version written by Persist.
	FormatVersion = "v1.0.0"

	maxLine = 1 << 20
)

// SerializationError reports a state file that could not be written or read.
type SerializationError struct {
	Op   string
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("state %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// ErrVersion is wrapped when the version line is missing, garbled or
// incompatible.
var ErrVersion = errors.New("unsupported state version")

// Entry is one persisted tool.
type Entry struct {
	Name   string       `json:"name"`
	Record tools.Record `json:"record"`
}

// File is the decoded content of a state file.
type File struct {
	Version string  `json:"version"`
	Entries []Entry `json:"entries"`
}

// Store reads and writes the state file at Path.
type Store struct {
	Path string
	Log  *logrus.Logger
}

// New returns a store for path. log may be nil.
func New(path string, log *logrus.Logger) *Store {
	return &Store{Path: path, Log: log}
}

// Persist writes the state of items atomically, replacing any previous file.
func (s *Store) Persist(items []tools.Tool) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s\n", Header, FormatVersion)
	for _, t := range items {
		name := t.Name()
		if name == "" || strings.ContainsAny(name, " \t\r\n") {
			return s.fail("write", fmt.Errorf("invalid tool name %q", name))
		}
		rec, err := t.PreserveState()
		if err != nil {
			return s.fail("write", fmt.Errorf("preserve %s: %w", name, err))
		}
		if rec == nil {
			rec = tools.Record{}
		}
		blob, err := json.Marshal(map[string]string(rec))
		if err != nil {
			return s.fail("write", fmt.Errorf("encode %s: %w", name, err))
		}
		buf.WriteString(name)
		buf.WriteByte('\n')
		buf.Write(blob)
		buf.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return s.fail("write", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return s.fail("write", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		_ = os.Remove(tmp)
		return s.fail("write", err)
	}
	s.logger().WithFields(logrus.Fields{"path": s.Path, "tools": len(items)}).Info("state persisted")
	return nil
}

// Read decodes the state file without touching any registry.
func (s *Store) Read() (*File, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, s.fail("read", err)
	}
	defer f.Close()

	file, err := Decode(f)
	if err != nil {
		return nil, s.fail("read", err)
	}
	return file, nil
}

// Decode parses a state stream.
func Decode(r io.Reader) (*File, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: empty file", ErrVersion)
	}
	version, err := parseHeader(sc.Text())
	if err != nil {
		return nil, err
	}

	file := &File{Version: version}
	line := 1
	for sc.Scan() {
		line++
		name := strings.TrimSpace(sc.Text())
		if name == "" {
			continue
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("line %d: tool %s has no state line", line, name)
		}
		line++
		blob := strings.TrimSpace(sc.Text())
		if blob == "" {
			return nil, fmt.Errorf("line %d: tool %s has an empty state line", line, name)
		}
		var rec map[string]string
		if err := json.Unmarshal([]byte(blob), &rec); err != nil {
			return nil, fmt.Errorf("line %d: decode %s: %w", line, name, err)
		}
		if rec == nil {
			rec = map[string]string{}
		}
		file.Entries = append(file.Entries, Entry{Name: name, Record: tools.Record(rec)})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return file, nil
}

func parseHeader(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 || fields[0] != Header {
		return "", fmt.Errorf("%w: %q", ErrVersion, line)
	}
	version := fields[1]
	if !Compatible(version) {
		return "", fmt.Errorf("%w: %s (supported %s)", ErrVersion, version, FormatVersion)
	}
	return version, nil
}

// Compatible reports whether a file written with version can be read.
func Compatible(version string) bool {
	if !semver.IsValid(version) {
		return false
	}
	if semver.Major(version) != semver.Major(FormatVersion) {
		return false
	}
	return semver.Compare(version, FormatVersion) <= 0
}

// Restore rebuilds the tools needed by requested from the state file. Every
// persisted tool is reconstructed through its factory and handed its record;
// tools the roles need that were not persisted are created with default
// state. The returned tools follow the catalog's tool order for requested.
// When the file cannot be decoded nothing is registered.
func (s *Store) Restore(reg *tools.Registry, catalog *roles.Catalog, requested []string) ([]tools.Tool, error) {
	file, err := s.Read()
	if err != nil {
		return nil, err
	}
	prims, toolNames, err := catalog.Resolve(requested)
	if err != nil {
		return nil, err
	}

	for _, e := range file.Entries {
		if !reg.CanBuild(e.Name) {
			return nil, s.fail("restore", fmt.Errorf("no factory for persisted tool %s", e.Name))
		}
	}
	for _, e := range file.Entries {
		t, err := reg.New(e.Name)
		if err != nil {
			return nil, s.fail("restore", err)
		}
		if err := t.RestoreState(e.Record, prims, file.Version); err != nil {
			return nil, s.fail("restore", fmt.Errorf("%s: %w", e.Name, err))
		}
		s.logger().WithFields(logrus.Fields{"tool": e.Name, "version": file.Version}).Debug("tool state restored")
	}

	out := make([]tools.Tool, 0, len(toolNames))
	for _, name := range toolNames {
		t, err := reg.Ensure(name)
		if err != nil {
			return nil, s.fail("restore", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) fail(op string, err error) error {
	s.logger().WithFields(logrus.Fields{"path": s.Path, "op": op}).WithError(err).Error("state failure")
	return &SerializationError{Op: op, Path: s.Path, Err: err}
}

func (s *Store) logger() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
