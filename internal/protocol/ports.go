// internal/protocol/ports.go
package protocol

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"

	"openbci-service/internal/model"
)

// FTDI bridge used by the OpenBCI USB dongle
const (
	dongleVID = "0403"
	donglePID = "6015"
)

// ListPorts returns the serial ports on the host, dongles first
func ListPorts() ([]model.PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	var dongles, others []model.PortInfo
	for _, p := range ports {
		info := model.PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		}
		if IsDongle(info) {
			dongles = append(dongles, info)
		} else {
			others = append(others, info)
		}
	}
	return append(dongles, others...), nil
}

// IsDongle reports whether a port looks like the OpenBCI USB dongle
func IsDongle(p model.PortInfo) bool {
	return p.IsUSB && strings.EqualFold(p.VID, dongleVID) && strings.EqualFold(p.PID, donglePID)
}
