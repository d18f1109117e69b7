//go:build unix

package serial

import "golang.org/x/sys/unix"

// IsCharacterDevice reports whether path is a character device node
func IsCharacterDevice(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return uint32(st.Mode)&unix.S_IFMT == unix.S_IFCHR
}
