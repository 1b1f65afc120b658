package tools

import (
	"os"
	"runtime"
)

var packageNames = map[string]string{
	"ssh": "openssh-client",
	"scp": "openssh-client",
	"tar": "tar",
}

func installHints(tool string) []string {
	pkg, ok := packageNames[tool]
	if !ok {
		return nil
	}

	if runtime.GOOS != "linux" {
		return []string{"Install " + tool + " using your platform's package manager"}
	}

	switch {
	case fileExists("/etc/debian_version"):
		return []string{"sudo apt-get install " + pkg}
	case fileExists("/etc/redhat-release"):
		if pkg == "openssh-client" {
			pkg = "openssh-clients"
		}
		return []string{"sudo yum install " + pkg}
	default:
		return []string{"Install " + pkg + " with your distro package manager"}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
