//go:build windows

package serial

// IsCharacterDevice always reports true on Windows, where COM ports are not
// filesystem nodes.
func IsCharacterDevice(path string) bool {
	return true
}
