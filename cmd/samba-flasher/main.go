package main

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bigbag/samba-flasher/internal/detect"
	"github.com/bigbag/samba-flasher/internal/device"
	"github.com/bigbag/samba-flasher/internal/flasher"
	"github.com/bigbag/samba-flasher/internal/protocol"
	"github.com/bigbag/samba-flasher/internal/serial"
	"github.com/bigbag/samba-flasher/internal/transport"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	portFlag  string
	baudFlag  int
	traceFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "samba-flasher",
		Short: "Read and flash firmware on SAM-BA bootloader devices",
		Long: `samba-flasher talks to Arduino-compatible SAM-BA bootloaders over a
serial line to identify the attached chip, dump its flash memory and
program new firmware into it.

Currently recognized chips: nRF52840-QIAA.`,
	}

	// Flash command
	flashCmd := &cobra.Command{
		Use:   "flash <firmware.bin>",
		Short: "Flash firmware to device",
		Long: `Flash a raw firmware image to the device through the bootloader's
write buffer. The image is written from the flash base address and must
fit the chip's flash capacity. If the device supports it, it is reset
into the new firmware afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: runFlash,
	}
	addPortFlags(flashCmd)

	// Read command
	readCmd := &cobra.Command{
		Use:   "read <dump.bin>",
		Short: "Dump flash memory to a file",
		Long:  "Read back the device's entire flash address space into a file.",
		Args:  cobra.ExactArgs(1),
		RunE:  runRead,
	}
	addPortFlags(readCmd)

	// Info command
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show device info",
		Long:  "Connect to the bootloader and show its capabilities and flash geometry.",
		RunE:  runInfo,
	}
	addPortFlags(infoCmd)

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("samba-flasher %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		RunE:  runList,
	}

	rootCmd.AddCommand(flashCmd, readCmd, infoCmd, versionCmd, listCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPortFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port (auto-detect if not specified)")
	cmd.Flags().IntVarP(&baudFlag, "baud", "b", protocol.DefaultBaudRate, "Baud rate")
	cmd.Flags().BoolVar(&traceFlag, "trace", false, "Echo protocol exchanges to stderr")
}

// openSession opens the port (auto-detecting one if none was given)
// and runs the init handshake.
func openSession() (*device.Device, *serial.Port, error) {
	portName := portFlag
	if portName == "" {
		fmt.Println("Detecting device...")
		result, err := detect.DetectDevice(baudFlag)
		if err != nil {
			return nil, nil, fmt.Errorf("device detection failed: %w", err)
		}
		portName = result.Port
		fmt.Printf("Found %s on %s\n", result.Flash.Name, result.Port)
	}

	port, err := serial.Open(portName, baudFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open port: %w", err)
	}

	conn := transport.New(port)
	if traceFlag {
		conn.Trace = os.Stderr
	}

	dev, err := device.Init(conn, portName)
	if err != nil {
		port.Close()
		return nil, nil, err
	}

	fmt.Printf("Port: %s @ %d baud\n", portName, baudFlag)
	return dev, port, nil
}

func runFlash(cmd *cobra.Command, args []string) error {
	firmwarePath := args[0]

	firmware, err := os.Open(firmwarePath)
	if err != nil {
		return fmt.Errorf("failed to open firmware file: %w", err)
	}
	defer firmware.Close()

	stat, err := firmware.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat firmware file: %w", err)
	}
	size := stat.Size()

	fmt.Printf("Firmware: %s (%d bytes)\n", firmwarePath, size)

	dev, port, err := openSession()
	if err != nil {
		return err
	}
	defer port.Close()

	fmt.Printf("Chip: %s (%d KiB flash)\n", dev.Flash.Name, dev.Flash.TotalSize()/1024)

	totalChunks := int((size + protocol.ChunkSize - 1) / protocol.ChunkSize)
	bar := progressbar.NewOptions(totalChunks,
		progressbar.OptionSetDescription("Flashing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	f := flasher.New(dev)
	f.SetProgressCallback(func(current, total int) {
		bar.Set(current)
	})

	if err := f.WriteImage(firmware, size); err != nil {
		return err
	}
	bar.Finish()

	fmt.Println("\nFlash complete!")
	if dev.Caps.Reset {
		fmt.Println("Device reset, running new firmware.")
	}
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	dumpPath := args[0]

	dev, port, err := openSession()
	if err != nil {
		return err
	}
	defer port.Close()

	total := dev.Flash.TotalSize()
	fmt.Printf("Chip: %s, reading %d bytes...\n", dev.Flash.Name, total)

	out, err := os.Create(dumpPath)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}
	defer out.Close()

	if err := dev.EnterBinaryMode(); err != nil {
		return err
	}

	bar := progressbar.NewOptions(int(total),
		progressbar.OptionSetDescription("Reading"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionClearOnFinish(),
	)

	r := flasher.NewReader(dev)
	if _, err := io.Copy(io.MultiWriter(out, bar), r); err != nil {
		return fmt.Errorf("flash read failed: %w", err)
	}
	bar.Finish()

	fmt.Printf("\nWrote %s\n", dumpPath)
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	if portFlag != "" {
		result, err := detect.DetectOnPort(portFlag, baudFlag)
		if err != nil {
			return fmt.Errorf("failed to detect device on %s: %w", portFlag, err)
		}
		printDeviceInfo(result)
		return nil
	}

	fmt.Println("Scanning for bootloader devices...")
	devices, err := detect.ListDevices(baudFlag)
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No bootloader devices found")
		return nil
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		fmt.Printf("Device %d:\n", i+1)
		printDeviceInfo(&d)
		fmt.Println()
	}

	return nil
}

func printDeviceInfo(d *detect.Result) {
	fmt.Printf("  Port:         %s\n", d.Port)
	fmt.Printf("  Chip:         %s\n", d.Flash.Name)
	fmt.Printf("  Capabilities: %s\n", d.Caps)
	fmt.Printf("  Flash:        %d pages x %d bytes @ 0x%08X (%d KiB)\n",
		d.Flash.Pages, d.Flash.Size, d.Flash.Addr, d.Flash.TotalSize()/1024)
	if d.Flash.Planes > 0 {
		fmt.Printf("  Planes:       %d\n", d.Flash.Planes)
	}
	if d.Flash.LockRegions > 0 {
		fmt.Printf("  Lock regions: %d\n", d.Flash.LockRegions)
	}
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}

	return nil
}
