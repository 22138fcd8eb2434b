package serial

import (
	"sort"

	"go.bug.st/serial/enumerator"

	"github.com/hadefuwa/eblocks-companion-app/internal/board"
)

// listPorts enumerates the OS serial devices. Replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// PortInfo describes one visible serial port, with the best-effort board
// family layered over the raw USB metadata.
type PortInfo struct {
	Name   string
	IsUSB  bool
	Desc   board.Descriptor
	Family board.Family
	Held   bool
}

// ListPorts returns the system's serial ports with board classification
// and this process's hold state. Descriptors are recomputed on every call
// because physical attachment can change at any moment; nothing here is
// cached.
func (m *Manager) ListPorts() ([]PortInfo, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, err
	}

	var result []PortInfo
	for _, p := range ports {
		desc := board.Descriptor{
			Port:         p.Name,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
			FriendlyName: p.Product,
		}
		result = append(result, PortInfo{
			Name:   p.Name,
			IsUSB:  p.IsUSB,
			Desc:   desc,
			Family: board.Identify(desc),
			Held:   m.registry.Held(p.Name),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
