package cmd

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"baudsniffer/serial"
)

// host describes the machine the sweep runs on. Fields are injectable so the
// checks can be tested on any platform.
type host struct {
	goos      string
	wsl       bool
	exists    func(path string) bool
	isCharDev func(path string) bool
}

func currentHost() host {
	return host{
		goos:      runtime.GOOS,
		wsl:       detectWSL(),
		exists:    pathExists,
		isCharDev: serial.IsCharacterDevice,
	}
}

// detectWSL reports whether we run under the Windows Subsystem for Linux
func detectWSL() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return true
	}
	if data, err := os.ReadFile("/proc/sys/kernel/osrelease"); err == nil {
		if strings.Contains(strings.ToLower(string(data)), "microsoft") {
			return true
		}
	}
	return pathExists("/mnt/c/Windows")
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isCOMName reports whether port is a Windows style name, e.g. COM4 or \\.\COM12
func isCOMName(port string) bool {
	name := strings.TrimPrefix(port, `\\.\`)
	return strings.HasPrefix(strings.ToUpper(name), "COM")
}

// hostWarnings returns the port-name problems worth telling the user about
// before a long sweep. They are advisory; the sweep still runs.
func hostWarnings(port string, h host) []string {
	var warnings []string

	if h.wsl {
		warnings = append(warnings,
			"Running under WSL (Windows Subsystem for Linux): serial ports are usually not reachable here, run the tool on Windows with a COM port instead")
	}

	switch h.goos {
	case "windows":
		if !isCOMName(port) {
			warnings = append(warnings, fmt.Sprintf("Port %q does not look like a Windows COM port (e.g. COM4)", port))
		}
	default:
		if isCOMName(port) {
			warnings = append(warnings, fmt.Sprintf("Port %q is a Windows name, use a device path such as /dev/ttyUSB0 on %s", port, h.goos))
			break
		}
		if h.exists != nil && !h.exists(port) {
			warnings = append(warnings, fmt.Sprintf("Port %s does not exist", port))
			break
		}
		if h.isCharDev != nil && !h.isCharDev(port) {
			warnings = append(warnings, fmt.Sprintf("Port %s is not a character device", port))
		}
	}

	return warnings
}
