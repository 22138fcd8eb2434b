// Package board classifies attached serial devices into board families.
//
// The dev boards this app targets mostly ship third-party USB-to-serial
// bridges (CH340, CP210x, FTDI) whose vendor/product IDs are reused across
// many unrelated products, so no single USB descriptor field is a reliable
// signal on its own. Identification therefore runs an ordered chain of
// classifiers and takes the first match; no match is a normal outcome, not
// an error, and the user can always pick a family by hand.
package board

import "strings"

// Family identifies a board family and selects the toolchain profile
// (FQBN and platform core) used to compile and flash it.
type Family string

const (
	// Unknown means no classifier matched. It is a valid result.
	Unknown Family = ""

	AVRMega Family = "avr-mega"
	AVRUno  Family = "avr-uno"
	ESP32   Family = "esp32"
)

// Families lists the supported families in display order.
func Families() []Family {
	return []Family{AVRMega, AVRUno, ESP32}
}

// DisplayName returns the human-readable family name.
func (f Family) DisplayName() string {
	switch f {
	case AVRMega:
		return "AVR Mega"
	case AVRUno:
		return "AVR Uno"
	case ESP32:
		return "ESP32"
	}
	return "Unknown"
}

// FQBN returns the fully qualified board name passed to the toolchain.
func (f Family) FQBN() string {
	switch f {
	case AVRMega:
		return "arduino:avr:mega"
	case AVRUno:
		return "arduino:avr:uno"
	case ESP32:
		return "esp32:esp32:esp32"
	}
	return ""
}

// Core returns the toolchain platform core that provides this family.
func (f Family) Core() string {
	switch f {
	case AVRMega, AVRUno:
		return "arduino:avr"
	case ESP32:
		return "esp32:esp32"
	}
	return ""
}

// Parse maps a user-supplied family name to a Family. It accepts the
// canonical identifiers and a few common spellings.
func Parse(s string) (Family, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "avr-mega", "avr_mega", "mega", "mega2560":
		return AVRMega, true
	case "avr-uno", "avr_uno", "uno":
		return AVRUno, true
	case "esp32":
		return ESP32, true
	}
	return Unknown, false
}

// Descriptor carries the raw USB metadata reported for one serial port.
// Fields the platform cannot provide are left empty.
type Descriptor struct {
	Port         string // OS device path, e.g. COM5 or /dev/ttyACM0
	VID          string // USB vendor ID, hex without 0x
	PID          string // USB product ID, hex without 0x
	SerialNumber string
	FriendlyName string
	Product      string
	Manufacturer string
	PnPID        string
}

// classifier inspects a descriptor and returns a family, or Unknown for
// no match. Classifiers must not error; ambiguity is expressed as Unknown.
type classifier func(Descriptor) Family

// classifiers run in order; the first non-Unknown result wins.
var classifiers = []classifier{
	matchUSBTable,
	matchVendorSerial,
	matchNameKeywords,
}

// Identify returns the best-effort family for a descriptor, or Unknown.
func Identify(d Descriptor) Family {
	for _, match := range classifiers {
		if f := match(d); f != Unknown {
			return f
		}
	}
	return Unknown
}

type usbID struct {
	vid string
	pid string
}

// usbTable holds vendor/product combinations that identify a board
// outright. Only IDs issued to board vendors belong here; bridge-chip IDs
// (1A86 CH340, 10C4 CP210x, 0403 FTDI) are deliberately absent because the
// same chip appears on boards of every family.
var usbTable = map[usbID]Family{
	{"12BF", "0030"}: AVRMega, // Matrix E-blocks BL0055
	{"2341", "0010"}: AVRMega, // Arduino Mega 2560
	{"2341", "0042"}: AVRMega, // Arduino Mega 2560 R3
	{"2A03", "0042"}: AVRMega, // Arduino.org Mega 2560
	{"2341", "0001"}: AVRUno,  // Arduino Uno
	{"2341", "0043"}: AVRUno,  // Arduino Uno R3
	{"303A", "1001"}: ESP32,   // Espressif USB-JTAG/serial unit
	{"303A", "0002"}: ESP32,   // ESP32-S2
}

func matchUSBTable(d Descriptor) Family {
	id := usbID{vid: strings.ToUpper(d.VID), pid: strings.ToUpper(d.PID)}
	return usbTable[id]
}

// vendorSerialPrefix marks serial numbers programmed by FTDI bridge chips.
const vendorSerialPrefix = "FT"

// matchVendorSerial recognises the bridge-vendor serial number convention.
// The marker only proves which USB bridge is fitted, not which board it is
// soldered to, so classification is delegated to the name keywords instead
// of assigning a family from the prefix.
func matchVendorSerial(d Descriptor) Family {
	if !strings.HasPrefix(strings.ToUpper(d.SerialNumber), vendorSerialPrefix) {
		return Unknown
	}
	return matchNameKeywords(d)
}

// nameKeywords are checked in priority order against the concatenated
// name fields. More specific markers come first so that, for example, a
// "Mega 2560" product string never resolves through a vaguer keyword.
var nameKeywords = []struct {
	word   string
	family Family
}{
	{"esp32", ESP32},
	{"mega 2560", AVRMega},
	{"mega2560", AVRMega},
	{"e-blocks", AVRMega},
	{"mega", AVRMega},
	{"uno", AVRUno},
}

func matchNameKeywords(d Descriptor) Family {
	haystack := strings.ToLower(strings.Join([]string{
		d.FriendlyName, d.Product, d.Manufacturer, d.PnPID,
	}, " "))
	for _, kw := range nameKeywords {
		if strings.Contains(haystack, kw.word) {
			return kw.family
		}
	}
	return Unknown
}
