package device

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.bug.st/serial"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/oshokin/sos-beacon/internal/logger"
)

var (
	// ErrDisconnected is returned by Send on a link without a port.
	ErrDisconnected = errors.New("device is not connected")
	// errPortRequired is returned when Open is called without a port name.
	errPortRequired = errors.New("serial port must be provided")
)

// maxLineLength bounds a single line; longer lines are dropped up to the next newline.
const maxLineLength = 4096

// Settings describes how to open the serial port.
type Settings struct {
	Port        string
	BaudRate    int
	SettleDelay time.Duration
}

// Link reads lines from and writes commands to the board.
type Link struct {
	// name is the port path, used in logs.
	name string
	// port is the underlying stream, nil when disconnected.
	port io.ReadWriteCloser

	// writeMu serializes command writes.
	writeMu sync.Mutex
	// closeOnce guards port.Close.
	closeOnce sync.Once
}

// Open opens the serial port described by s and waits for the board to settle.
func Open(ctx context.Context, s Settings) (*Link, error) {
	if s.Port == "" {
		return nil, errPortRequired
	}

	//nolint:exhaustruct // Remaining mode fields keep driver defaults.
	port, err := serial.Open(s.Port, &serial.Mode{
		BaudRate: s.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", s.Port, err)
	}

	if s.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			_ = port.Close()

			return nil, ctx.Err()
		case <-time.After(s.SettleDelay):
		}
	}

	return NewLink(s.Port, port), nil
}

// NewLink wraps an already opened stream.
func NewLink(name string, port io.ReadWriteCloser) *Link {
	return &Link{
		name: name,
		port: port,
	}
}

// Disconnected returns a link with no port: Listen returns at once and Send fails.
func Disconnected() *Link {
	return &Link{name: "disconnected"}
}

// Name returns the port path.
func (l *Link) Name() string {
	return l.name
}

// Connected reports whether the link has a port.
func (l *Link) Connected() bool {
	return l.port != nil
}

// Listen reads lines until ctx is done or the stream fails and hands every
// non-empty line to handle. It returns nil on cancellation and on a clean EOF.
// The port is closed when Listen returns.
func (l *Link) Listen(ctx context.Context, handle func(context.Context, string)) error {
	if l.port == nil {
		return nil
	}

	defer func() {
		_ = l.Close()
	}()

	ctx = logger.WithKV(ctx, "port", l.name)

	stop := context.AfterFunc(ctx, func() {
		_ = l.Close()
	})
	defer stop()

	splitter := &lineSplitter{
		limit: maxLineLength,
		onDrop: func(size int) {
			logger.WarnKV(ctx, "Over-long line dropped", "bytes", size)
		},
	}

	scanner := bufio.NewScanner(transform.NewReader(l.port, sanitizer()))
	scanner.Buffer(make([]byte, 0, 256), 2*maxLineLength)
	scanner.Split(splitter.split)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		logger.DebugKV(ctx, "Line received", "line", line)
		handle(ctx, line)
	}

	if ctx.Err() != nil {
		return nil
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read serial port %s: %w", l.name, err)
	}

	return nil
}

// Send writes command followed by a newline.
func (l *Link) Send(ctx context.Context, command string) error {
	if l.port == nil {
		return ErrDisconnected
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if _, err := io.WriteString(l.port, command+"\n"); err != nil {
		return fmt.Errorf("write serial port %s: %w", l.name, err)
	}

	logger.DebugKV(ctx, "Command sent", "port", l.name, "command", command)

	return nil
}

// Close releases the port. It is safe to call more than once.
func (l *Link) Close() error {
	if l.port == nil {
		return nil
	}

	var err error

	l.closeOnce.Do(func() {
		err = l.port.Close()
	})

	return err
}

// Ports lists the serial ports present on this machine.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	return ports, nil
}

// lineSplitter splits the stream on '\n' like bufio.ScanLines, except that a
// line longer than limit is discarded up to its newline instead of failing the scan.
type lineSplitter struct {
	limit  int
	onDrop func(size int)

	// dropping is set while the rest of an over-long line is being skipped.
	dropping bool
	// dropped counts the bytes skipped so far for the current line.
	dropped int
}

func (s *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		if s.dropping || i > s.limit {
			s.finishDrop(i)

			return i + 1, nil, nil
		}

		return i + 1, bytes.TrimSuffix(data[:i], []byte{'\r'}), nil
	}

	if len(data) > s.limit && !atEOF {
		s.dropping = true
		s.dropped += len(data)

		return len(data), nil, nil
	}

	if atEOF && len(data) > 0 {
		if s.dropping || len(data) > s.limit {
			s.finishDrop(len(data))

			return len(data), nil, nil
		}

		return len(data), data, nil
	}

	return 0, nil, nil
}

func (s *lineSplitter) finishDrop(tail int) {
	size := s.dropped + tail
	s.dropping = false
	s.dropped = 0

	if s.onDrop != nil {
		s.onDrop(size)
	}
}

// sanitizer drops ill-formed UTF-8 sequences from the stream.
func sanitizer() transform.Transformer {
	return transform.Chain(
		runes.ReplaceIllFormed(),
		runes.Remove(runes.Predicate(func(r rune) bool { return r == utf8.RuneError })),
	)
}
