package serial

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
)

const sysfsRoot = "/sys"

// USBInfo describes the USB device behind a tty, if any
type USBInfo struct {
	VendorID        string
	ProductID       string
	SerialNumber    string
	Manufacturer    string
	Product         string
	InterfaceNumber string
	BusNumber       string
	DeviceNumber    string
}

// ID returns "vid:pid"
func (u *USBInfo) ID() string {
	return u.VendorID + ":" + u.ProductID
}

// readSysfsFile reads a sysfs attribute, returning "" when it is absent
func readSysfsFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// usbInfoFromSysfs walks up from /sys/class/tty/<name>/device to the USB
// device directory, the first ancestor carrying idVendor.
func usbInfoFromSysfs(root, name string) *USBInfo {
	resolved, err := filepath.EvalSymlinks(filepath.Join(root, "class", "tty", name, "device"))
	if err != nil {
		return nil
	}
	iface := resolved
	for dir := resolved; dir != "/" && dir != "." && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "idVendor")); err != nil {
			iface = dir
			continue
		}
		return &USBInfo{
			VendorID:        readSysfsFile(filepath.Join(dir, "idVendor")),
			ProductID:       readSysfsFile(filepath.Join(dir, "idProduct")),
			SerialNumber:    readSysfsFile(filepath.Join(dir, "serial")),
			Manufacturer:    readSysfsFile(filepath.Join(dir, "manufacturer")),
			Product:         readSysfsFile(filepath.Join(dir, "product")),
			InterfaceNumber: readSysfsFile(filepath.Join(iface, "bInterfaceNumber")),
			BusNumber:       readSysfsFile(filepath.Join(dir, "busnum")),
			DeviceNumber:    readSysfsFile(filepath.Join(dir, "devnum")),
		}
	}
	return nil
}

// enumerateUSB asks the platform enumerator for USB ids, keyed by device path.
func enumerateUSB() (map[string]*USBInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	infos := make(map[string]*USBInfo, len(details))
	for _, d := range details {
		if !d.IsUSB {
			continue
		}
		infos[d.Name] = &USBInfo{
			VendorID:     strings.ToLower(d.VID),
			ProductID:    strings.ToLower(d.PID),
			SerialNumber: d.SerialNumber,
		}
	}
	return infos, nil
}

// lookupUSB merges the enumerator result for path with what sysfs knows.
// sysfs supplies the names and bus location the enumerator lacks.
func lookupUSB(enumerated map[string]*USBInfo, path string) *USBInfo {
	info := usbInfoFromSysfs(sysfsRoot, filepath.Base(path))
	if e, ok := enumerated[path]; ok {
		if info == nil {
			return e
		}
		if info.SerialNumber == "" {
			info.SerialNumber = e.SerialNumber
		}
	}
	return info
}

// usbResetPath formats bus and device numbers as usbreset expects (BBB/DDD)
func usbResetPath(bus, device string) (string, error) {
	b, err := strconv.Atoi(bus)
	if err != nil {
		return "", fmt.Errorf("bus number %q: %w", bus, err)
	}
	d, err := strconv.Atoi(device)
	if err != nil {
		return "", fmt.Errorf("device number %q: %w", device, err)
	}
	return fmt.Sprintf("%03d/%03d", b, d), nil
}

// ResetUSBDevice performs a USB-level reset of the adapter behind path,
// recovering hardware that stopped responding. It needs the usbreset
// utility (usbutils) and usually root. settle is how long to wait for the
// device to re-enumerate.
func ResetUSBDevice(ctx context.Context, path string, settle time.Duration) error {
	info := usbInfoFromSysfs(sysfsRoot, filepath.Base(path))
	if info == nil || info.BusNumber == "" || info.DeviceNumber == "" {
		return ErrUSBInfoNotAvailable
	}
	if !IsUSBResetAvailable() {
		return ErrUSBResetNotAvailable
	}
	usbPath, err := usbResetPath(info.BusNumber, info.DeviceNumber)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "usbreset", usbPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("usbreset failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}

	select {
	case <-time.After(settle):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsUSBResetAvailable checks if usbreset utility is available in PATH
func IsUSBResetAvailable() bool {
	_, err := exec.LookPath("usbreset")
	return err == nil
}
