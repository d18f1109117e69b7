package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"baudsniffer/serial"

	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List the serial ports present on this machine, to find the one the
unknown device is attached to.

With --table, USB adapters are shown with their vendor and product ids.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tableFormat, _ := cmd.Flags().GetBool("table")
		out := cmd.OutOrStdout()

		if !tableFormat {
			ports, err := serial.ListPorts()
			if err != nil {
				return err
			}
			renderSimple(out, ports)
			return nil
		}

		ports, err := serial.DetailedPorts()
		if err != nil {
			return err
		}
		renderPortTable(out, ports)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
}

// renderSimple renders the port list in simple text format
func renderSimple(w io.Writer, ports []string) {
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found")
		return
	}
	for _, port := range ports {
		fmt.Fprintln(w, port)
	}
}

// renderPortTable renders the port list in a styled static table format
func renderPortTable(w io.Writer, ports []serial.PortInfo) {
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found")
		return
	}

	fmt.Fprintf(w, "Found %d serial port(s):\n\n", len(ports))

	portWidth := 15
	typeWidth := 20
	idWidth := 10
	descWidth := 30

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s",
		portWidth, "Port",
		typeWidth, "Type",
		idWidth, "VID:PID",
		descWidth, "Description")
	fmt.Fprintln(w, headerStyle.Render(header))

	for _, p := range ports {
		ids := "-"
		if p.IsUSB {
			ids = p.VID + ":" + p.PID
		}
		desc := p.Product
		if p.SerialNumber != "" {
			desc = strings.TrimSpace(desc + " (" + p.SerialNumber + ")")
		}

		row := fmt.Sprintf("%-*s %-*s %-*s %-*s",
			portWidth, p.Name,
			typeWidth, getPortType(p.Name, p.IsUSB),
			idWidth, ids,
			descWidth, desc)
		fmt.Fprintln(w, cellStyle.Render(row))
	}
}

// getPortType returns a more specific type classification for the port
func getPortType(port string, isUSB bool) string {
	name := strings.ToLower(filepath.Base(port))
	switch {
	case strings.HasPrefix(name, "ttyusb"):
		return "USB Serial"
	case strings.HasPrefix(name, "ttyacm"):
		return "USB CDC/ACM"
	case strings.HasPrefix(name, "ttyama"):
		return "ARM Serial"
	case strings.HasPrefix(name, "ttys"):
		return "Standard Serial"
	case strings.HasPrefix(name, "cu.") || strings.HasPrefix(name, "tty."):
		if isUSB {
			return "USB Serial"
		}
		return "Serial Port"
	case isCOMName(port):
		if isUSB {
			return "USB COM Port"
		}
		return "COM Port"
	case isUSB:
		return "USB Serial"
	default:
		return "Serial Port"
	}
}
