//go:build !darwin
// +build !darwin

package monitor

import "golang.org/x/sys/unix"

// maxRSSBytes converts ru_maxrss, which linux and the BSDs report in kilobytes
func maxRSSBytes(ru *unix.Rusage) int64 {
	return int64(ru.Maxrss) * 1024
}
