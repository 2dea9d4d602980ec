package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/ytget/yt-downloader-bot/internal/model"
)

// File permissions
const (
	DefaultDirPermissions  = 0755
	PrivateFilePermissions = 0600
)

// Work directory naming
const (
	DefaultWorkRootName = "yt-downloader-bot"
	WorkDirPattern      = "job-*"
)

// File extensions left behind by an interrupted or in-progress fetch
var (
	SkippedExtensions = []string{".part", ".ytdl", ".temp", ".tmp"}
)

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// GetDefaultWorkRoot returns the directory under which job work dirs are created
func GetDefaultWorkRoot() string {
	return filepath.Join(os.TempDir(), DefaultWorkRootName)
}

// AllocateWorkDir creates a fresh directory under root that no other job uses
func AllocateWorkDir(root string) (string, error) {
	if root == "" {
		root = GetDefaultWorkRoot()
	}
	if err := CreateDirectoryIfNotExists(root); err != nil {
		return "", fmt.Errorf("failed to create work root %s: %w", root, err)
	}
	dir, err := os.MkdirTemp(root, WorkDirPattern)
	if err != nil {
		return "", fmt.Errorf("failed to allocate work dir: %w", err)
	}
	return dir, nil
}

// RemoveWorkDir removes dir and everything in it. Removing a missing
// directory is not an error.
func RemoveWorkDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrCleanupFailure, dir, err)
	}
	return nil
}

// ListProducedFiles returns the finished files in dir ordered by modification
// time, then name. Directories and partial downloads are skipped.
func ListProducedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	type produced struct {
		path    string
		modUnix int64
	}
	var files []produced

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if isPartialFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, produced{
			path:    filepath.Join(dir, entry.Name()),
			modUnix: info.ModTime().UnixNano(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].modUnix != files[j].modUnix {
			return files[i].modUnix < files[j].modUnix
		}
		return files[i].path < files[j].path
	})

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.path)
	}
	return paths, nil
}

// FileSize returns the size of path in bytes
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// FreeBytes returns the free space of the filesystem holding path. A missing
// path is probed through its nearest existing parent.
func FreeBytes(path string) (uint64, error) {
	probe := path
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}

	usage, err := disk.Usage(probe)
	if err != nil {
		return 0, fmt.Errorf("failed to probe disk usage of %s: %w", probe, err)
	}
	return usage.Free, nil
}

// isPartialFile checks if a filename belongs to an unfinished fetch
func isPartialFile(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range SkippedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
