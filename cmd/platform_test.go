package cmd

import (
	"strings"
	"testing"
)

func TestIsCOMName(t *testing.T) {
	tests := []struct {
		port string
		want bool
	}{
		{"COM4", true},
		{"com1", true},
		{`\\.\COM12`, true},
		{"/dev/ttyUSB0", false},
		{"/dev/ttyACM0", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isCOMName(tt.port); got != tt.want {
			t.Errorf("isCOMName(%q) = %v, want %v", tt.port, got, tt.want)
		}
	}
}

func TestHostWarnings(t *testing.T) {
	always := func(string) bool { return true }
	never := func(string) bool { return false }

	tests := []struct {
		name string
		port string
		host host
		want []string // substrings, in order
	}{
		{
			name: "windows with COM port",
			port: "COM4",
			host: host{goos: "windows"},
		},
		{
			name: "windows with device path",
			port: "/dev/ttyS1",
			host: host{goos: "windows"},
			want: []string{"does not look like a Windows COM port"},
		},
		{
			name: "linux with device path",
			port: "/dev/ttyUSB0",
			host: host{goos: "linux", exists: always, isCharDev: always},
		},
		{
			name: "linux with COM name",
			port: "COM4",
			host: host{goos: "linux", exists: always, isCharDev: always},
			want: []string{"is a Windows name"},
		},
		{
			name: "missing device",
			port: "/dev/ttyUSB9",
			host: host{goos: "linux", exists: never, isCharDev: never},
			want: []string{"does not exist"},
		},
		{
			name: "regular file",
			port: "/tmp/capture.bin",
			host: host{goos: "darwin", exists: always, isCharDev: never},
			want: []string{"not a character device"},
		},
		{
			name: "wsl",
			port: "/dev/ttyS4",
			host: host{goos: "linux", wsl: true, exists: always, isCharDev: always},
			want: []string{"WSL"},
		},
		{
			name: "wsl with COM name",
			port: "COM4",
			host: host{goos: "linux", wsl: true},
			want: []string{"WSL", "is a Windows name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hostWarnings(tt.port, tt.host)
			if len(got) != len(tt.want) {
				t.Fatalf("hostWarnings() = %q, want %d warnings", got, len(tt.want))
			}
			for i, sub := range tt.want {
				if !strings.Contains(got[i], sub) {
					t.Errorf("warning %d = %q, want substring %q", i, got[i], sub)
				}
			}
		})
	}
}
