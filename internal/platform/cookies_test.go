package platform

import (
	"encoding/base64"
	"os"
	"testing"
)

func TestWriteCookiesFile(t *testing.T) {
	content := "# Netscape HTTP Cookie File\n.youtube.com\tTRUE\t/\tTRUE\t0\tPREF\tf6=8\n"
	path, err := WriteCookiesFile(base64.StdEncoding.EncodeToString([]byte(content)))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read cookies file: %v", err)
	}
	if string(data) != content {
		t.Errorf("Expected decoded content, got %q", string(data))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != PrivateFilePermissions {
		t.Errorf("Expected mode %o, got %o", PrivateFilePermissions, info.Mode().Perm())
	}
}

func TestWriteCookiesFile_Empty(t *testing.T) {
	path, err := WriteCookiesFile("  ")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if path != "" {
		t.Errorf("Expected empty path, got %s", path)
	}
}

func TestWriteCookiesFile_InvalidBase64(t *testing.T) {
	if _, err := WriteCookiesFile("not base64 !!"); err == nil {
		t.Error("Expected error for invalid base64")
	}
}
