package serial

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestReadSysfsFile tests the sysfs file reading helper
func TestReadSysfsFile(t *testing.T) {
	// Create a temporary directory for testing
	tmpDir, err := os.MkdirTemp("", "serial-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	tests := []struct {
		name     string
		content  string
		expected string
		setup    func(string) error
	}{
		{
			name:     "normal file",
			content:  "1234\n",
			expected: "1234",
			setup: func(path string) error {
				return os.WriteFile(path, []byte("1234\n"), 0644)
			},
		},
		{
			name:     "file with spaces",
			content:  "  test value  \n",
			expected: "test value",
			setup: func(path string) error {
				return os.WriteFile(path, []byte("  test value  \n"), 0644)
			},
		},
		{
			name:     "nonexistent file",
			expected: "",
			setup:    func(path string) error { return nil },
		},
		{
			name:     "empty file",
			content:  "",
			expected: "",
			setup: func(path string) error {
				return os.WriteFile(path, []byte(""), 0644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testFile := filepath.Join(tmpDir, tt.name)
			if err := tt.setup(testFile); err != nil {
				t.Fatalf("Setup failed: %v", err)
			}

			result := readSysfsFile(testFile)
			if result != tt.expected {
				t.Errorf("readSysfsFile() = %q, expected %q", result, tt.expected)
			}
		})
	}
}

// mockSysfs builds a sysfs tree for ttyUSB0 behind interface 1.0 of an
// FTDI adapter on bus 5, device 7, and returns its resolved root.
func mockSysfs(t *testing.T) string {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "serial-sysfs-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })
	if tmpDir, err = filepath.EvalSymlinks(tmpDir); err != nil {
		t.Fatal(err)
	}

	// tmpDir/class/tty/ttyUSB0/device -> tmpDir/devices/usb5/5-2.3.1/5-2.3.1:1.0/ttyUSB0
	devicePath := filepath.Join(tmpDir, "devices", "usb5", "5-2.3.1")
	interfacePath := filepath.Join(devicePath, "5-2.3.1:1.0")
	ttyPath := filepath.Join(interfacePath, "ttyUSB0")
	classTtyPath := filepath.Join(tmpDir, "class", "tty", "ttyUSB0")

	for _, dir := range []string{ttyPath, classTtyPath, filepath.Join(tmpDir, "class", "tty", "ttyS0")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory structure: %v", err)
		}
	}

	deviceFiles := map[string]string{
		"idVendor":     "0403",
		"idProduct":    "6010",
		"serial":       "FT123456",
		"manufacturer": "FTDI",
		"product":      "FT2232C Dual USB-UART",
		"busnum":       "5",
		"devnum":       "7",
	}
	for filename, content := range deviceFiles {
		path := filepath.Join(devicePath, filename)
		if err := os.WriteFile(path, []byte(content+"\n"), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", filename, err)
		}
	}
	if err := os.WriteFile(filepath.Join(interfacePath, "bInterfaceNumber"), []byte("00\n"), 0644); err != nil {
		t.Fatalf("Failed to write interface number: %v", err)
	}

	if err := os.Symlink(ttyPath, filepath.Join(classTtyPath, "device")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	return tmpDir
}

// TestUSBInfoFromSysfs tests USB metadata extraction with a mock sysfs structure
func TestUSBInfoFromSysfs(t *testing.T) {
	root := mockSysfs(t)

	info := usbInfoFromSysfs(root, "ttyUSB0")
	if info == nil {
		t.Fatal("usbInfoFromSysfs() = nil")
	}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"VendorID", info.VendorID, "0403"},
		{"ProductID", info.ProductID, "6010"},
		{"SerialNumber", info.SerialNumber, "FT123456"},
		{"InterfaceNumber", info.InterfaceNumber, "00"},
		{"BusNumber", info.BusNumber, "5"},
		{"DeviceNumber", info.DeviceNumber, "7"},
		{"Manufacturer", info.Manufacturer, "FTDI"},
		{"Product", info.Product, "FT2232C Dual USB-UART"},
		{"ID", info.ID(), "0403:6010"},
	}

	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("%s = %q, expected %q", tt.name, tt.got, tt.expected)
		}
	}
}

// TestUSBInfoFromSysfsNotUSB tests that non-USB and missing ttys yield nil
func TestUSBInfoFromSysfsNotUSB(t *testing.T) {
	root := mockSysfs(t)

	for _, name := range []string{"ttyS0", "ttyUSB999"} {
		if info := usbInfoFromSysfs(root, name); info != nil {
			t.Errorf("usbInfoFromSysfs(%q) = %+v, expected nil", name, info)
		}
	}
}

func TestLookupUSB(t *testing.T) {
	enumerated := map[string]*USBInfo{
		"/dev/ttyFAKE7": {VendorID: "2341", ProductID: "0043", SerialNumber: "A1B2"},
	}

	// The enumerator is the fallback when sysfs knows nothing
	if info := lookupUSB(enumerated, "/dev/ttyFAKE7"); info == nil || info.ID() != "2341:0043" {
		t.Errorf("lookupUSB() = %+v", info)
	}
	if info := lookupUSB(enumerated, "/dev/ttyFAKE8"); info != nil {
		t.Errorf("lookupUSB() for unknown path = %+v, expected nil", info)
	}
	if info := lookupUSB(nil, "/dev/ttyFAKE7"); info != nil {
		t.Errorf("lookupUSB() without enumeration = %+v, expected nil", info)
	}
}

// TestUSBResetPath tests the USB path formatting logic
func TestUSBResetPath(t *testing.T) {
	tests := []struct {
		bus      string
		device   string
		expected string
		wantErr  bool
	}{
		{"5", "7", "005/007", false},
		{"1", "2", "001/002", false},
		{"123", "456", "123/456", false},
		{"1", "10", "001/010", false},
		{"x", "1", "", true},
		{"1", "", "", true},
	}

	for _, tt := range tests {
		formatted, err := usbResetPath(tt.bus, tt.device)
		if (err != nil) != tt.wantErr {
			t.Errorf("usbResetPath(%q, %q) error = %v, wantErr %v", tt.bus, tt.device, err, tt.wantErr)
			continue
		}
		if formatted != tt.expected {
			t.Errorf("usbResetPath(%q, %q) = %q, expected %q",
				tt.bus, tt.device, formatted, tt.expected)
		}
	}
}

// TestResetUSBDeviceNotUSB tests error handling for a tty without USB metadata
func TestResetUSBDeviceNotUSB(t *testing.T) {
	err := ResetUSBDevice(context.Background(), "/dev/ttyNONEXISTENT0", time.Millisecond)
	if !errors.Is(err, ErrUSBInfoNotAvailable) {
		t.Errorf("ResetUSBDevice() error = %v, expected %v", err, ErrUSBInfoNotAvailable)
	}
}

// TestIsUSBResetAvailable tests the availability check
func TestIsUSBResetAvailable(t *testing.T) {
	// Depends on the host; only make sure it does not panic
	t.Logf("usbreset available: %v", IsUSBResetAvailable())
}
