package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TokenFile persists the signed-in token between CLI runs.
type TokenFile struct {
	Path string
}

// DefaultTokenFile is ~/.taskdesk/token.
func DefaultTokenFile() (TokenFile, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return TokenFile{}, fmt.Errorf("locate home directory: %w", err)
	}
	return TokenFile{Path: filepath.Join(home, ".taskdesk", "token")}, nil
}

// Load returns "" when no token has been saved.
func (f TokenFile) Load() (string, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (f TokenFile) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.Path, []byte(token+"\n"), 0o600)
}

func (f TokenFile) Clear() error {
	err := os.Remove(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
