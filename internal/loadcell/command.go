package loadcell

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// Opcode is a command byte written to the device.
type Opcode byte

const (
	OpTare               Opcode = 0x64
	OpStartWeight        Opcode = 0x65
	OpStopWeight         Opcode = 0x66
	OpStartPeakRFD       Opcode = 0x67
	OpStartPeakRFDSeries Opcode = 0x68
	OpGetAppVersion      Opcode = 0x6B
	OpGetErrorInfo       Opcode = 0x6C
	OpClearErrorInfo     Opcode = 0x6D
	OpSleep              Opcode = 0x6E
	OpBatteryVoltage     Opcode = 0x6F
)

var opcodeNames = map[string]Opcode{
	"tare":             OpTare,
	"start":            OpStartWeight,
	"stop":             OpStopWeight,
	"peak-rfd":         OpStartPeakRFD,
	"peak-rfd-series":  OpStartPeakRFDSeries,
	"version":          OpGetAppVersion,
	"error-info":       OpGetErrorInfo,
	"clear-error-info": OpClearErrorInfo,
	"sleep":            OpSleep,
	"battery":          OpBatteryVoltage,
}

// ParseOpcode maps a command name such as "tare" to its opcode.
func ParseOpcode(name string) (Opcode, error) {
	op, ok := opcodeNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown command %q", name)
	}
	return op, nil
}

// CommandNames lists the names ParseOpcode accepts, sorted.
func CommandNames() []string {
	out := make([]string, 0, len(opcodeNames))
	for name := range opcodeNames {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (o Opcode) String() string {
	for name, op := range opcodeNames {
		if op == o {
			return name
		}
	}
	return fmt.Sprintf("0x%02X", byte(o))
}

// EncodeCommand frames a command: opcode, payload length, payload.
func EncodeCommand(op Opcode, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("command payload of %d bytes exceeds %d", len(payload), MaxPayload)
	}
	out := make([]byte, 0, 2+len(payload))
	out = append(out, byte(op), byte(len(payload)))
	return append(out, payload...), nil
}

// BatteryMillivolts decodes a command response to OpBatteryVoltage.
func (p Packet) BatteryMillivolts() (uint32, error) {
	if p.Code != CommandResponse {
		return 0, fmt.Errorf("packet %s is not a command response", p.Code)
	}
	if len(p.Payload) < 4 {
		return 0, fmt.Errorf("%w: battery response has %d bytes", ErrShortPacket, len(p.Payload))
	}
	return binary.LittleEndian.Uint32(p.Payload[:4]), nil
}

// Text decodes a command response carrying a string, such as the firmware
// version.
func (p Packet) Text() string {
	return strings.TrimRight(string(p.Payload), "\x00")
}
