//go:build !darwin

package filesystem

import (
	"os"
	"time"
)

// createdAt falls back to the modification time where the platform does
// not report a birth time through os.FileInfo.
func createdAt(info os.FileInfo) time.Time {
	return info.ModTime()
}
