// Package hostlist reads the slave host lists handed to the installer.
package hostlist

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// Load reads the host list at path. See Parse.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read host list: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse reads one host per line. Blank lines and text after '#' are ignored.
// Hosts carrying a user@ prefix, containing whitespace or listed twice are
// reported as ValidationErrors; the valid hosts are still returned in file
// order.
func Parse(r io.Reader) ([]string, error) {
	var (
		hosts []string
		errs  ValidationErrors
		seen  = map[string]int{}
		line  = 0
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		host := strings.TrimSpace(text)
		if host == "" {
			continue
		}
		switch {
		case strings.ContainsAny(host, " \t"):
			errs = append(errs, ValidationError{Line: line, Host: host, Message: "must hold a single host"})
			continue
		case strings.Contains(host, "@"):
			errs = append(errs, ValidationError{Line: line, Host: host, Message: "must not carry a user; set the remote user in the configuration"})
			continue
		}
		key := strings.ToLower(host)
		if first, dup := seen[key]; dup {
			errs = append(errs, ValidationError{Line: line, Host: host, Message: fmt.Sprintf("duplicates line %d", first)})
			continue
		}
		seen[key] = line
		hosts = append(hosts, host)
	}
	if err := sc.Err(); err != nil {
		return hosts, fmt.Errorf("read host list: %w", err)
	}
	if len(errs) > 0 {
		return hosts, errs
	}
	return hosts, nil
}

// Split parses a comma separated host list as given on the command line.
func Split(list string) ([]string, error) {
	return Parse(strings.NewReader(strings.ReplaceAll(list, ",", "\n")))
}
