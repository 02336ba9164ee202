//go:build !linux

package local

import (
	"fmt"
	"runtime"
)

// HostSyscalls returns the Syscalls of the running kernel. Only Linux has
// name_to_handle_at(2) and open_by_handle_at(2).
func HostSyscalls() (Syscalls, error) {
	return nil, fmt.Errorf("handle-based file access is not available on %s", runtime.GOOS)
}
