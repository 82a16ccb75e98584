// Package host implements the serial-port side of the rig protocol: issue
// commands, collect responses, and route unsolicited STREAM pushes arriving
// on the same line stream.
package host

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the rig's serial speed.
	DefaultBaudRate = 115200
	// DefaultTimeout bounds how long a query waits for its response line.
	DefaultTimeout = 2 * time.Second
	// DefaultBufferSize is the stream measurement channel depth.
	DefaultBufferSize = 100

	// streamPrefix marks unsolicited push lines; everything else on the
	// stream is a command response.
	streamPrefix = "STREAM "
)

// Measurement is one streamed acquisition result.
type Measurement struct {
	Timestamp   time.Time
	VoltSeconds float64
	Trigger     uint64
}

// Client talks to one rig device over its serial link.
type Client struct {
	port    string
	baud    int
	timeout time.Duration

	conn      io.ReadWriteCloser
	pushes    chan Measurement
	responses chan string
	mu        sync.RWMutex
	wmu       sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a Client for the named serial port.
func New(port string, baud int) *Client {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		port:      port,
		baud:      baud,
		timeout:   DefaultTimeout,
		pushes:    make(chan Measurement, DefaultBufferSize),
		responses: make(chan string, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Connect opens the serial port and starts the line reader.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected")
	}

	conn, err := serial.Open(c.port, &serial.Mode{BaudRate: c.baud})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", c.port, err)
	}

	c.conn = conn
	c.connected = true
	go c.readLines()

	return nil
}

// Attach connects the client to an already open stream instead of a serial
// port. Used by tests and by transports other than a local tty.
func (c *Client) Attach(rw io.ReadWriteCloser) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected")
	}
	c.conn = rw
	c.connected = true
	go c.readLines()
	return nil
}

// Close closes the connection and stops the reader.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	c.cancel()
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			log.Printf("host: closing connection: %v", err)
		}
		c.conn = nil
	}
	c.connected = false
	close(c.pushes)

	return nil
}

// IsConnected reports whether the client currently holds an open link.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Measurements returns the channel of unsolicited stream measurements.
func (c *Client) Measurements() <-chan Measurement {
	return c.pushes
}

// Inject feeds a measurement into the stream channel as if it had arrived as
// an unsolicited push. The bridge's polling fallback uses it so both paths
// share one consumer.
func (c *Client) Inject(m Measurement) {
	select {
	case c.pushes <- m:
	default:
		log.Printf("host: measurement channel full, dropping injected measurement")
	}
}

// Identify queries *IDN? and returns the identity string.
func (c *Client) Identify() (string, error) {
	return c.Query("*IDN?")
}

// Query sends one query command (the caller includes the trailing '?') and
// waits for the response line.
func (c *Client) Query(cmd string) (string, error) {
	// A response that arrived after its query timed out must not satisfy
	// this one.
	select {
	case stale := <-c.responses:
		log.Printf("host: discarding stale response %q", stale)
	default:
	}

	if err := c.writeLine(cmd); err != nil {
		return "", err
	}
	select {
	case resp := <-c.responses:
		return resp, nil
	case <-time.After(c.timeout):
		return "", fmt.Errorf("timeout waiting for response to %q", cmd)
	case <-c.ctx.Done():
		return "", fmt.Errorf("connection closed")
	}
}

// Set sends one setter command. The rig never acknowledges sets, so the only
// errors are transport errors.
func (c *Client) Set(cmd, value string) error {
	return c.writeLine(cmd + " " + value)
}

func (c *Client) writeLine(s string) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected {
		return fmt.Errorf("not connected")
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := conn.Write([]byte(s + "\r\n")); err != nil {
		return fmt.Errorf("failed to send %q: %w", s, err)
	}
	return nil
}

// readLines splits the incoming stream into response lines and unsolicited
// pushes, telling them apart by the STREAM prefix.
func (c *Client) readLines() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("host: panic in readLines: %v", r)
		}
	}()

	scanner := bufio.NewScanner(c.conn)
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && err != io.EOF {
				log.Printf("host: reading from device: %v", err)
			}
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, streamPrefix) {
			m, err := parseStream(line)
			if err != nil {
				log.Printf("host: failed to parse push %q: %v", line, err)
				continue
			}
			select {
			case c.pushes <- m:
			case <-c.ctx.Done():
				return
			default:
				log.Printf("host: measurement channel full, dropping push")
			}
			continue
		}

		select {
		case c.responses <- line:
		case <-c.ctx.Done():
			return
		default:
			// Response with no waiting query; drop it.
			log.Printf("host: unsolicited response %q", line)
		}
	}
}

// parseStream parses an unsolicited push line.
// Format: STREAM DAT: <float>, TRIG: <uint>
func parseStream(line string) (Measurement, error) {
	return ParseData(strings.TrimPrefix(line, streamPrefix))
}

// ParseData parses a measurement pair as the rig formats it, for both stream
// push bodies and MEASurement:DATa? responses.
// Format: DAT: <float>, TRIG: <uint>
func ParseData(body string) (Measurement, error) {
	parts := strings.Split(body, ",")
	if len(parts) != 2 {
		return Measurement{}, fmt.Errorf("expected 2 comma-separated fields, got %d", len(parts))
	}

	datStr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[0]), "DAT:"))
	value, err := strconv.ParseFloat(datStr, 64)
	if err != nil {
		return Measurement{}, fmt.Errorf("invalid DAT field: %w", err)
	}

	trigStr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[1]), "TRIG:"))
	trig, err := strconv.ParseUint(trigStr, 10, 64)
	if err != nil {
		return Measurement{}, fmt.Errorf("invalid TRIG field: %w", err)
	}

	return Measurement{
		Timestamp:   time.Now(),
		VoltSeconds: value,
		Trigger:     trig,
	}, nil
}
