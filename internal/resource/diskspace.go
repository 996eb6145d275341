// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

// Package resource checks host resource levels the cascade consults before
// committing to expensive work.
package resource

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MinFreeBytesBeforeOCR is the free-space floor pass_pdf.py enforces on
// WORK_DIR before entering an OCR pass: below this, a file fails with a
// LOW_DISK reason rather than risk a partial write mid-run.
const MinFreeBytesBeforeOCR = 1024 * 1024 * 1024 // 1 GiB

// FreeBytes reports the number of free bytes available on the filesystem
// containing path. It returns -1 if the free space cannot be determined,
// mirroring the original's "unknown" sentinel rather than failing the
// caller outright.
func FreeBytes(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return -1, fmt.Errorf("statfs %s: %w", path, err)
	}
	return int64(st.Bavail) * int64(st.Bsize), nil //nolint:gosec // filesystem block counts fit in int64
}

// HasHeadroom reports whether the filesystem containing path has at least
// minBytes free. An undeterminable free-space reading is treated as
// sufficient headroom, matching the original's free_mb < 0 short-circuit.
func HasHeadroom(path string, minBytes int64) bool {
	free, err := FreeBytes(path)
	if err != nil || free < 0 {
		return true
	}
	return free >= minBytes
}
