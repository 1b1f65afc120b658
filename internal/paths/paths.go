package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudera/llama-sub000/internal/config"
)

// WorkPaths captures canonical locations of an installer working directory.
type WorkPaths struct {
	Root           string
	ConfigFile     string
	SlavesFile     string
	PropertiesFile string
	EnvFile        string
	MetaDir        string
	StateFile      string
	PackagesDir    string
	LogsDir        string
}

// Resolve determines the working directory using the optional --workdir flag
// or the current working directory when the flag is empty.
func Resolve(workdirFlag string) (WorkPaths, error) {
	var (
		root string
		err  error
	)

	if workdirFlag != "" {
		root, err = filepath.Abs(workdirFlag)
	} else {
		root, err = os.Getwd()
	}
	if err != nil {
		return WorkPaths{}, fmt.Errorf("resolve working directory: %w", err)
	}

	return newWorkPaths(root), nil
}

func newWorkPaths(root string) WorkPaths {
	metaDir := filepath.Join(root, ".installer")
	return WorkPaths{
		Root:        root,
		ConfigFile:  filepath.Join(root, "installer.yaml"),
		SlavesFile:  filepath.Join(root, "slaves"),
		EnvFile:     filepath.Join(root, ".env"),
		MetaDir:     metaDir,
		StateFile:   filepath.Join(metaDir, "state"),
		PackagesDir: filepath.Join(metaDir, "packages"),
		LogsDir:     filepath.Join(root, "logs"),
	}
}

// ApplyConfig resolves the file locations named in cfg against the root.
func ApplyConfig(wp WorkPaths, cfg config.Config) WorkPaths {
	if slaves := strings.TrimSpace(cfg.SlavesFile); slaves != "" {
		wp.SlavesFile = resolvePath(wp.Root, slaves)
	}
	if props := strings.TrimSpace(cfg.PropertiesFile); props != "" {
		wp.PropertiesFile = resolvePath(wp.Root, props)
	}
	return wp
}

// Resolve joins a relative value with the root.
func (p WorkPaths) Resolve(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return resolvePath(p.Root, value)
}

func resolvePath(root, value string) string {
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(root, value)
}

// EnsureMetaDirs creates the hidden metadata directory and the logs
// directory.
func (p WorkPaths) EnsureMetaDirs() error {
	dirs := []string{p.MetaDir, p.PackagesDir, p.LogsDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
