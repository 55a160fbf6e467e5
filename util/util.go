package util

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandTilde expands the tilde in a file path to the current user's
// home directory.
func ExpandTilde(filePath string) (string, error) {
	if !strings.HasPrefix(filePath, "~") {
		return filePath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, strings.TrimPrefix(filePath, "~")), nil
}

// FileExists returns true if the file at path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// StringListContains returns true if list contains item.
func StringListContains(list []string, item string) bool {
	for _, listItem := range list {
		if listItem == item {
			return true
		}
	}
	return false
}

// TestsAreRunning returns true when the current binary is a test
// binary. Some constructors relax credential checks under test.
func TestsAreRunning() bool {
	return strings.HasSuffix(os.Args[0], ".test")
}
