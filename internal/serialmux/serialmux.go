// Serialmux provides an abstraction over the load cell's serial bridge with
// the ability for multiple clients to subscribe to decoded packets and send
// commands to a single device.
package serialmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"tailscale.com/tsweb"

	"github.com/banshee-data/biomech.report/internal/loadcell"
)

var ErrWriteFailed = fmt.Errorf("failed to write to serial port")

// SerialMux is a generic serial port multiplexer that allows multiple clients to
// subscribe to packets from a single serial port.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan loadcell.Packet
	drops        map[string]uint64
	subscriberMu sync.Mutex
	dropped      atomic.Uint64
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new channel for receiving packets from the serial
	// port. The channel ID is used to identify the unique channel when
	// unsubscribing.
	Subscribe() (string, chan loadcell.Packet)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendCommand frames and writes a command to the serial port.
	SendCommand(loadcell.Opcode, []byte) error
	// Monitor reads packets from the serial port and sends them to the
	// subscribers.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the serial port.
	Close() error

	Initialize() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux creates a SerialMux instance backed by the given port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan loadcell.Packet),
		drops:       make(map[string]uint64),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// subscriberBuffer lets a subscriber lag a few packets behind the device
// before packets are dropped for it.
const subscriberBuffer = 64

func (s *SerialMux[T]) Subscribe() (string, chan loadcell.Packet) {
	id := randomID()
	ch := make(chan loadcell.Packet, subscriberBuffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
	if n := s.drops[id]; n > 0 {
		opsf("subscriber %s left after %d dropped packets", id, n)
		delete(s.drops, id)
	}
}

// dropReportEvery throttles the ops log while a subscriber stays behind.
const dropReportEvery = 100

// Dropped is the number of packets not delivered to a full subscriber since
// the mux was created.
func (s *SerialMux[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// Initialize stops any stream left running by a previous session and zeroes
// the sensor.
func (s *SerialMux[T]) Initialize() error {
	for _, op := range []loadcell.Opcode{
		loadcell.OpStopWeight,
		loadcell.OpTare,
		loadcell.OpGetAppVersion,
	} {
		if err := s.SendCommand(op, nil); err != nil {
			return fmt.Errorf("failed to send %s command: %w", op, err)
		}
	}
	return nil
}

// SendCommand frames a command and writes it to the serial port.
func (s *SerialMux[T]) SendCommand(op loadcell.Opcode, payload []byte) error {
	frame, err := loadcell.EncodeCommand(op, payload)
	if err != nil {
		return err
	}
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	n, err := s.port.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads packets from the serial port and fans them out to
// subscribers. It returns nil when the port reaches EOF or the mux closes.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	reader := bufio.NewReader(s.port)

	packetChan := make(chan loadcell.Packet)
	readErrChan := make(chan error, 1)

	// the blocking read will not interfere with our outer loop awaiting
	// packets & context cancellation.
	go func() {
		defer close(packetChan)
		for {
			p, err := loadcell.ReadPacket(reader)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					select {
					case readErrChan <- err:
					case <-ctx.Done():
					}
				}
				return
			}
			select {
			case packetChan <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErrChan:
			if s.isClosing() {
				return nil
			}
			return err

		case p, ok := <-packetChan:
			if !ok {
				select {
				case err := <-readErrChan:
					if !s.isClosing() {
						return err
					}
				default:
				}
				return nil
			}
			if s.isClosing() {
				return nil
			}

			s.subscriberMu.Lock()
			for id, ch := range s.subscribers {
				select {
				case ch <- p:
				default:
					// A full subscriber loses the packet rather than stalling the
					// others, leaving a gap in its sample timeline.
					s.dropped.Add(1)
					s.drops[id]++
					if n := s.drops[id]; n == 1 || n%dropReportEvery == 0 {
						opsf("subscriber %s is full, dropped %s packet (%d so far)", id, p.Code, n)
					}
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *SerialMux[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
		delete(s.drops, id)
	}
	return s.port.Close()
}

// packetEvent is the JSON shape streamed by the tail endpoint.
type packetEvent struct {
	Code    string            `json:"code"`
	Samples []loadcell.Sample `json:"samples,omitempty"`
	Payload []byte            `json:"payload,omitempty"`
}

func newPacketEvent(p loadcell.Packet) packetEvent {
	ev := packetEvent{Code: p.Code.String()}
	if p.HasSamples() {
		if samples, err := p.Samples(); err == nil {
			ev.Samples = samples
			return ev
		}
	}
	ev.Payload = p.Payload
	return ev
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, s)
}

type commandSubscriber interface {
	Subscribe() (string, chan loadcell.Packet)
	Unsubscribe(string)
	SendCommand(loadcell.Opcode, []byte) error
}

func attachAdminRoutes(mux *http.ServeMux, s commandSubscriber) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("send-command", "list load cell commands", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "POST command=<name> to /debug/send-command-api\n\n")
		for _, name := range loadcell.CommandNames() {
			op, _ := loadcell.ParseOpcode(name)
			fmt.Fprintf(w, "%-18s 0x%02X\n", name, byte(op))
		}
	})

	// API endpoint to write a named command to the serial port
	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimSpace(r.FormValue("command"))
		if name == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		op, err := loadcell.ParseOpcode(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(op, nil); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote command %q to serial port", name))
	})

	// API endpoint to issue Server-Side Events (SSE) for each packet from the serial port.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		for {
			select {
			case p, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(newPacketEvent(p))
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	})
}
