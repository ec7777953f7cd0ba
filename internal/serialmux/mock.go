package serialmux

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/biomech.report/internal/loadcell"
	"github.com/banshee-data/biomech.report/internal/timeutil"
)

// SimulatedLoadCell implements SerialPorter by emulating the device: it
// answers commands and, while streaming, emits weight packets sampled from
// Signal at RateHz.
type SimulatedLoadCell struct {
	// Signal returns the force at elapsed stream time t.
	Signal func(t time.Duration) float64
	RateHz float64
	// Batch is the number of samples per weight packet.
	Batch int

	mu        sync.Mutex
	r         *io.PipeReader
	w         *io.PipeWriter
	streaming bool
	sent      int
	offset    float64
	stop      chan struct{}
	closeOnce sync.Once
}

// DefaultSimulatedSignal is a 1 Hz pull oscillating between 2 and 8 kg.
func DefaultSimulatedSignal(t time.Duration) float64 {
	return 5 + 3*math.Sin(2*math.Pi*t.Seconds())
}

// NewSimulatedLoadCell starts the emulator on the wall clock. Close stops it.
func NewSimulatedLoadCell(signal func(time.Duration) float64, rateHz float64) *SimulatedLoadCell {
	return NewSimulatedLoadCellWithClock(signal, rateHz, timeutil.RealClock{})
}

// NewSimulatedLoadCellWithClock starts the emulator with packets paced by
// clock.
func NewSimulatedLoadCellWithClock(signal func(time.Duration) float64, rateHz float64, clock timeutil.Clock) *SimulatedLoadCell {
	r, w := io.Pipe()
	s := &SimulatedLoadCell{
		Signal: signal,
		RateHz: rateHz,
		Batch:  8,
		r:      r,
		w:      w,
		stop:   make(chan struct{}),
	}
	ticker := clock.NewTicker(s.interval())
	go s.run(ticker)
	return s
}

// interval is the time covered by one batch.
func (s *SimulatedLoadCell) interval() time.Duration {
	return time.Duration(float64(s.Batch) / s.RateHz * float64(time.Second))
}

func (s *SimulatedLoadCell) run(ticker timeutil.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C():
			if p, ok := s.nextBatch(); ok {
				s.emit(p)
			}
		}
	}
}

func (s *SimulatedLoadCell) nextBatch() (loadcell.Packet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.streaming {
		return loadcell.Packet{}, false
	}
	samples := make([]loadcell.Sample, s.Batch)
	for i := range samples {
		at := s.elapsed()
		samples[i] = loadcell.Sample{
			Value:  s.Signal(at) - s.offset,
			Micros: uint32(at / time.Microsecond),
		}
		s.sent++
	}
	return loadcell.EncodeSamples(loadcell.WeightMeasurement, samples)[0], true
}

func (s *SimulatedLoadCell) emit(p loadcell.Packet) {
	b, err := p.Encode()
	if err != nil {
		return
	}
	s.w.Write(b)
}

// elapsed is the stream time of the next sample.
func (s *SimulatedLoadCell) elapsed() time.Duration {
	return time.Duration(float64(s.sent) * float64(time.Second) / s.RateHz)
}

// Read returns the emulated device output.
func (s *SimulatedLoadCell) Read(p []byte) (int, error) { return s.r.Read(p) }

// Write accepts framed commands.
func (s *SimulatedLoadCell) Write(p []byte) (int, error) {
	for rest := p; len(rest) >= 2; {
		n := int(rest[1])
		if len(rest) < 2+n {
			break
		}
		s.handle(loadcell.Opcode(rest[0]))
		rest = rest[2+n:]
	}
	return len(p), nil
}

func (s *SimulatedLoadCell) handle(op loadcell.Opcode) {
	var reply *loadcell.Packet
	s.mu.Lock()
	switch op {
	case loadcell.OpStartWeight:
		s.streaming = true
	case loadcell.OpStopWeight:
		s.streaming = false
	case loadcell.OpTare:
		at := s.elapsed()
		s.offset = s.Signal(at)
	case loadcell.OpGetAppVersion:
		reply = &loadcell.Packet{Code: loadcell.CommandResponse, Payload: []byte("sim-1.0")}
	case loadcell.OpBatteryVoltage:
		payload := make([]byte, 4)
		binary.LittleEndian.PutUint32(payload, 3700)
		reply = &loadcell.Packet{Code: loadcell.CommandResponse, Payload: payload}
	}
	s.mu.Unlock()
	if reply != nil {
		go s.emit(*reply)
	}
}

// Streaming reports whether the emulator is emitting weight packets.
func (s *SimulatedLoadCell) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Close stops the emulator; pending reads return EOF.
func (s *SimulatedLoadCell) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.w.Close()
	})
	return nil
}

// NewMockSerialMux creates a SerialMux backed by a simulated load cell.
func NewMockSerialMux(signal func(time.Duration) float64, rateHz float64) *SerialMux[*SimulatedLoadCell] {
	return NewSerialMux(NewSimulatedLoadCell(signal, rateHz))
}

// TestableSerialPort implements SerialPorter with configurable behaviour for testing.
// It provides fine-grained control over reads, writes and errors.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// ShortWrite makes Write report one byte fewer than it was given
	ShortWrite bool

	// Closed indicates whether Close was called
	Closed bool

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	readCond *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read reads from the read buffer, optionally blocking or failing.
func (t *TestableSerialPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("serial port closed")
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if t.BlockReads && t.ReadBuffer.Len() == 0 {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, errors.New("serial port closed")
		}
	}

	return t.ReadBuffer.Read(p)
}

// Write writes to the write buffer, optionally failing.
func (t *TestableSerialPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("serial port closed")
	}

	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	n, err = t.WriteBuffer.Write(p)
	if t.ShortWrite && n > 0 {
		n--
	}
	return n, err
}

// Close marks the port as closed.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast()
	return nil
}

// AddPacket frames p and adds it to the data returned by subsequent reads.
func (t *TestableSerialPort) AddPacket(p loadcell.Packet) {
	b, err := p.Encode()
	if err != nil {
		panic(err)
	}
	t.AddReadData(b)
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Signal()
}

// GetWrittenData returns all data written to the port.
func (t *TestableSerialPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]byte(nil), t.WriteBuffer.Bytes()...)
}
