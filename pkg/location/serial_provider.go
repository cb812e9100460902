package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarm/serial"
)

// maxLinesPerRead bounds a single ReadFixes call on a chatty link.
const maxLinesPerRead = 10000

// SerialProvider reads tagged NMEA lines from a gateway on a serial port.
type SerialProvider struct {
	port        string        // Serial port the gateway is connected to
	baudRate    int           // Baud rate for the serial communication
	readTimeout time.Duration // Silence that ends one batch

	mu      sync.Mutex
	conn    io.ReadCloser
	reader  *bufio.Reader
	partial string
	logger  zerolog.Logger
}

// NewSerialProvider creates a provider. The port is opened on first use.
func NewSerialProvider(port string, baudRate int, readTimeout time.Duration, logger zerolog.Logger) *SerialProvider {
	return &SerialProvider{
		port:        port,
		baudRate:    baudRate,
		readTimeout: readTimeout,
		logger:      logger,
	}
}

// ReadFixes drains the lines buffered on the link. It returns once the link
// has been silent for the read timeout.
func (s *SerialProvider) ReadFixes(ctx context.Context) ([]Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		conn, err := serial.OpenPort(&serial.Config{Name: s.port, Baud: s.baudRate, ReadTimeout: s.readTimeout})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", s.port, err)
		}
		s.conn = conn
		s.reader = bufio.NewReader(conn)
	}

	var fixes []Fix
	skipped := 0
	for i := 0; i < maxLinesPerRead; i++ {
		if ctx.Err() != nil {
			break
		}

		chunk, err := s.reader.ReadString('\n')
		if err != nil {
			// keep the fragment for the next call
			s.partial += chunk
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrNoProgress) {
				break
			}
			s.closeLocked()
			return fixes, fmt.Errorf("failed to read from serial port %s: %w", s.port, err)
		}

		line := s.partial + chunk
		s.partial = ""
		if strings.TrimSpace(line) == "" {
			continue
		}
		fix, err := ParseTaggedSentence(line)
		if err != nil {
			skipped++
			s.logger.Debug().Err(err).Str("line", strings.TrimSpace(line)).Msg("Skipping NMEA line")
			continue
		}
		fixes = append(fixes, fix)
	}

	s.logger.Debug().Int("fixes", len(fixes)).Int("skipped", skipped).Str("port", s.port).Msg("Serial batch read")
	return fixes, nil
}

// Close releases the serial port.
func (s *SerialProvider) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *SerialProvider) closeLocked() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.reader = nil
	s.partial = ""
	return err
}
