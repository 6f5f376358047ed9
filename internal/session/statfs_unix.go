//go:build linux || darwin || freebsd

package session

import "golang.org/x/sys/unix"

// FreeSpace reports the bytes available to unprivileged users on the
// filesystem holding path.
func FreeSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil //nolint:gosec // Bsize is positive
}
