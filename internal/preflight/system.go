package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const (
	// MinDiskSpaceBytes is the minimum free space under the storage root.
	MinDiskSpaceBytes = 100 * 1024 * 1024

	// MinFileDescriptors leaves room for index segments, spool files and
	// daemon connections.
	MinFileDescriptors = 1024
)

// DiskSpace checks the free space of the filesystem holding path.
func (c *Checker) DiskSpace(path string) Check {
	return func(context.Context) CheckResult {
		result := CheckResult{Name: "disk_space", Required: true}

		var stat syscall.Statfs_t
		if err := syscall.Statfs(existingParent(path), &stat); err != nil {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("failed to check disk space: %v", err)
			return result
		}

		available := stat.Bavail * uint64(stat.Bsize)
		result.Message = fmt.Sprintf("%s free (minimum: 100 MB)", formatBytes(available))
		result.Status = StatusPass
		if available < MinDiskSpaceBytes {
			result.Status = StatusFail
			result.Details = "Index writes fail once the disk is full; free space under " + path
		}
		return result
	}
}

// WritePermissions creates and removes a probe file in dir, creating dir
// when missing.
func (c *Checker) WritePermissions(dir string) Check {
	return func(context.Context) CheckResult {
		result := CheckResult{Name: "write_permissions", Required: true}

		if err := os.MkdirAll(dir, 0o755); err != nil {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
			return result
		}
		f, err := os.CreateTemp(dir, ".preflight-*")
		if err != nil {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("permission denied: %v", err)
			return result
		}
		_ = f.Close()
		_ = os.Remove(f.Name())

		result.Status = StatusPass
		result.Message = dir
		return result
	}
}

// FileDescriptors checks the soft open-file limit.
func (c *Checker) FileDescriptors() Check {
	return func(context.Context) CheckResult {
		result := CheckResult{Name: "file_descriptors", Required: true}

		var rLimit syscall.Rlimit
		if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
			return result
		}

		result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
		result.Status = StatusPass
		if rLimit.Cur < MinFileDescriptors {
			result.Status = StatusFail
			result.Details = "Run 'ulimit -n 10240' to increase the limit"
		}
		return result
	}
}

// existingParent walks up from path to the nearest directory that exists.
func existingParent(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
