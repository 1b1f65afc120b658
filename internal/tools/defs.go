package tools

import (
	"runtime"
	"sort"
)

// BinaryDefinition describes a local executable the installer shells out to.
type BinaryDefinition struct {
	Name           string
	Executable     string
	VersionSwitch  string
	MinimumVersion string
}

var binaryDefinitions = map[string]BinaryDefinition{
	"ssh": {
		Name:           "ssh",
		Executable:     executableName("ssh"),
		VersionSwitch:  "-V",
		MinimumVersion: "4.3",
	},
	"scp": {
		Name:       "scp",
		Executable: executableName("scp"),
	},
	"tar": {
		Name:           "tar",
		Executable:     executableName("tar"),
		VersionSwitch:  "--version",
		MinimumVersion: "1.15",
	},
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

// KnownBinaries returns the names of the prerequisite binaries.
func KnownBinaries() []string {
	names := make([]string, 0, len(binaryDefinitions))
	for name := range binaryDefinitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BinaryDef returns the definition for a prerequisite binary.
func BinaryDef(name string) (BinaryDefinition, bool) {
	def, ok := binaryDefinitions[name]
	return def, ok
}
