package arduino

import (
	"strings"
)

// DetectedPort is one row of `arduino-cli board list`.
type DetectedPort struct {
	Address   string
	Protocol  string
	BoardName string
	FQBN      string
}

// parseBoardList parses the text table printed by `board list`. Values are
// sliced at the header's column offsets because the Board Name column
// contains spaces. Rows the toolchain cannot attribute leave Board Name as
// "Unknown" and FQBN empty.
func parseBoardList(output string) []DetectedPort {
	lines := strings.Split(output, "\n")

	headerIdx := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "Port") && strings.Contains(line, "Protocol") {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}

	header := lines[headerIdx]
	protoCol := strings.Index(header, "Protocol")
	typeCol := strings.Index(header, "Type")
	nameCol := strings.Index(header, "Board Name")
	fqbnCol := strings.Index(header, "FQBN")
	coreCol := strings.Index(header, "Core")

	var ports []DetectedPort
	for _, line := range lines[headerIdx+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		p := DetectedPort{
			Address:   strings.TrimSpace(column(line, 0, protoCol)),
			Protocol:  strings.TrimSpace(column(line, protoCol, typeCol)),
			BoardName: strings.TrimSpace(column(line, nameCol, fqbnCol)),
			FQBN:      strings.TrimSpace(column(line, fqbnCol, coreCol)),
		}
		if p.Address == "" {
			continue
		}
		ports = append(ports, p)
	}
	return ports
}

// column slices line between two header offsets, tolerating short rows and
// columns missing from this toolchain version's header.
func column(line string, from, to int) string {
	if from < 0 || from >= len(line) {
		return ""
	}
	if to < from || to > len(line) {
		to = len(line)
	}
	return line[from:to]
}

// knownBoardMarkers are substrings that mark a detected board name as a
// plausible flash target.
var knownBoardMarkers = []string{"arduino", "mega", "uno", "esp32", "e-blocks"}

// choosePort picks the flash target from the toolchain's enumeration.
// Rows naming a known board win over the first row, because a machine may
// expose unrelated serial devices (a system modem, a debug probe) that
// must not be flashed by default.
func choosePort(ports []DetectedPort) (string, error) {
	var serial []DetectedPort
	for _, p := range ports {
		if p.Protocol == "" || p.Protocol == "serial" {
			serial = append(serial, p)
		}
	}

	for _, p := range serial {
		name := strings.ToLower(p.BoardName)
		for _, marker := range knownBoardMarkers {
			if strings.Contains(name, marker) {
				return p.Address, nil
			}
		}
	}
	if len(serial) > 0 {
		return serial[0].Address, nil
	}
	return "", ErrNoPortResolved
}
