package helper

import (
	"os"
	"path/filepath"
)

// SystemConfigDir is the last directory searched for configuration files.
const SystemConfigDir = "/etc/bloop"

// GetCfgPath returns the path to the configuration file.
//
// Priority:
// 1. If filename is an absolute path, return it directly.
// 2. Check ./{filename} and ./configs/{filename}
// 3. Otherwise, fallback to /etc/bloop/{filename}
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}

	if filepath.IsAbs(filename) {
		return filename
	}

	if found := lookupWorkingDir(filename); found != "" {
		return found
	}

	return filepath.Join(SystemConfigDir, filename)
}

func lookupWorkingDir(filename string) string {
	wd, err := os.Getwd()
	if err != nil || wd == "" {
		return ""
	}

	for _, candidate := range []string{
		filepath.Join(wd, filename),
		filepath.Join(wd, "configs", filename),
	} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			return abs
		}
	}
	return ""
}
