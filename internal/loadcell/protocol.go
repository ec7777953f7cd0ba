// Package loadcell decodes the binary protocol spoken by the force sensor:
// response packets carrying batches of timestamped force samples, and the
// single-byte command opcodes the host writes back.
//
// Every packet is framed as a one byte code, a one byte payload length and
// the payload. Sample payloads are repeated eight byte records: a little
// endian float32 value followed by a little endian uint32 device timestamp
// in microseconds.
package loadcell

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrShortPacket = errors.New("loadcell: short packet")
	ErrBadLength   = errors.New("loadcell: payload is not a whole number of records")
	ErrLowPower    = errors.New("loadcell: low power warning")
)

// RecordSize is the size of one sample record in bytes.
const RecordSize = 8

// MaxPayload is the largest payload a one byte length can describe.
const MaxPayload = 255

// ResponseCode identifies a packet sent by the device.
type ResponseCode byte

const (
	CommandResponse   ResponseCode = 0
	WeightMeasurement ResponseCode = 1
	RFDPeak           ResponseCode = 2
	RFDPeakSeries     ResponseCode = 3
	LowPowerWarning   ResponseCode = 4
)

func (c ResponseCode) String() string {
	switch c {
	case CommandResponse:
		return "command_response"
	case WeightMeasurement:
		return "weight_measurement"
	case RFDPeak:
		return "rfd_peak"
	case RFDPeakSeries:
		return "rfd_peak_series"
	case LowPowerWarning:
		return "low_power_warning"
	default:
		return fmt.Sprintf("unknown(%d)", byte(c))
	}
}

// Sample is one decoded record.
type Sample struct {
	Value float64 `json:"value"`
	// Micros is the device clock in microseconds.
	Micros uint32 `json:"micros"`
}

// Millis is the device timestamp in milliseconds.
func (s Sample) Millis() int64 { return int64(s.Micros / 1000) }

// Packet is one framed response.
type Packet struct {
	Code    ResponseCode `json:"code"`
	Payload []byte       `json:"payload"`
}

// Decode parses exactly one packet from b. Trailing bytes after the declared
// payload are ignored.
func Decode(b []byte) (Packet, error) {
	if len(b) < 2 {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	n := int(b[1])
	if len(b)-2 < n {
		return Packet{}, fmt.Errorf("%w: header declares %d payload bytes, have %d", ErrShortPacket, n, len(b)-2)
	}
	payload := make([]byte, n)
	copy(payload, b[2:2+n])
	return Packet{Code: ResponseCode(b[0]), Payload: payload}, nil
}

// ReadPacket reads the next packet from r.
func ReadPacket(r *bufio.Reader) (Packet, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Packet{}, err
	}
	payload := make([]byte, int(header[1]))
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Packet{}, fmt.Errorf("%w: %v", ErrShortPacket, err)
		}
		return Packet{}, err
	}
	return Packet{Code: ResponseCode(header[0]), Payload: payload}, nil
}

// Encode frames p for the wire.
func (p Packet) Encode() ([]byte, error) {
	if len(p.Payload) > MaxPayload {
		return nil, fmt.Errorf("payload of %d bytes exceeds %d", len(p.Payload), MaxPayload)
	}
	out := make([]byte, 0, 2+len(p.Payload))
	out = append(out, byte(p.Code), byte(len(p.Payload)))
	return append(out, p.Payload...), nil
}

// Err returns ErrLowPower for a low power warning and nil otherwise.
func (p Packet) Err() error {
	if p.Code == LowPowerWarning {
		return ErrLowPower
	}
	return nil
}

// HasSamples reports whether the packet carries sample records.
func (p Packet) HasSamples() bool {
	switch p.Code {
	case WeightMeasurement, RFDPeak, RFDPeakSeries:
		return true
	}
	return false
}

// Samples decodes the records of a sample-bearing packet.
func (p Packet) Samples() ([]Sample, error) {
	if !p.HasSamples() {
		return nil, fmt.Errorf("packet %s carries no samples", p.Code)
	}
	if len(p.Payload)%RecordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadLength, len(p.Payload))
	}
	out := make([]Sample, len(p.Payload)/RecordSize)
	for i := range out {
		rec := p.Payload[i*RecordSize:]
		out[i] = Sample{
			Value:  float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[0:4]))),
			Micros: binary.LittleEndian.Uint32(rec[4:8]),
		}
	}
	return out, nil
}

// EncodeSamples packs samples into packets with the given code, splitting
// across packets so each payload fits in a one byte length.
func EncodeSamples(code ResponseCode, samples []Sample) []Packet {
	const perPacket = MaxPayload / RecordSize
	var out []Packet
	for len(samples) > 0 {
		n := len(samples)
		if n > perPacket {
			n = perPacket
		}
		payload := make([]byte, n*RecordSize)
		for i, s := range samples[:n] {
			rec := payload[i*RecordSize:]
			binary.LittleEndian.PutUint32(rec[0:4], math.Float32bits(float32(s.Value)))
			binary.LittleEndian.PutUint32(rec[4:8], s.Micros)
		}
		out = append(out, Packet{Code: code, Payload: payload})
		samples = samples[n:]
	}
	return out
}
