//go:build !linux && !darwin && !freebsd

package session

import "errors"

// FreeSpace is not available on this platform; callers treat the error as
// "unknown" and skip the check.
func FreeSpace(string) (uint64, error) {
	return 0, errors.New("free space probe not supported on this platform")
}
