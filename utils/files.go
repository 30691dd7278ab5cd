package utils

import (
	"os"
)

func Exists(path string) (isDir bool, exists bool, err error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return info.IsDir(), true, nil
}

// WritableFile reports whether path is an existing regular file the process may
// append to. It never creates the file.
func WritableFile(path string) bool {
	if isDir, exists, err := Exists(path); err != nil || !exists || isDir {
		return false
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
