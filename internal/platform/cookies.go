package platform

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// Cookie file naming
const (
	CookiesFilePattern = "youtube_cookies_*.txt"
)

// WriteCookiesFile decodes a base64 Netscape cookies.txt and writes it to a
// private temporary file. An empty input returns an empty path and no error.
func WriteCookiesFile(encoded string) (string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode cookies: %w", err)
	}

	f, err := os.CreateTemp("", CookiesFilePattern)
	if err != nil {
		return "", fmt.Errorf("failed to create cookies file: %w", err)
	}
	path := f.Name()

	if err := f.Chmod(PrivateFilePermissions); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to restrict cookies file: %w", err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write cookies file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write cookies file: %w", err)
	}
	return path, nil
}
