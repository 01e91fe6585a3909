package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates dir and its parents when missing
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, os.ModePerm)
}

// WriteJSON marshals v and replaces the contents of savePath
func WriteJSON(savePath string, v interface{}) error {
	bs, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(savePath), err)
	}
	return os.WriteFile(savePath, bs, 0644)
}

// AppendJSONLine marshals every value and appends it to savePath as one line
func AppendJSONLine(savePath string, values ...interface{}) error {
	f, err := os.OpenFile(savePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, v := range values {
		bs, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", filepath.Base(savePath), err)
		}
		if _, err = f.Write(append(bs, '\n')); err != nil {
			return err
		}
	}
	return nil
}
