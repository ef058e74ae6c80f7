package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// StreamWriter is the producer side of the byte stream. TryEmit offers one
// record and reports whether the consumer accepted it. A rejected record is
// dropped. After a rejection the monitor stops offering records until the
// consumer calls Monitor.RequestMore.
type StreamWriter interface {
	TryEmit(record []byte) bool
}

// ByteStream is an in-memory StreamWriter readable as an io.Reader. It
// accepts records while fewer than highWater bytes are unread and signals
// demand after every read.
type ByteStream struct {
	mu        sync.Mutex
	readable  *sync.Cond
	buf       bytes.Buffer
	highWater int
	closed    bool
	onDemand  func()
}

// NewByteStream creates a stream holding at most highWater unread bytes.
func NewByteStream(highWater int) *ByteStream {
	s := &ByteStream{highWater: highWater}
	s.readable = sync.NewCond(&s.mu)
	return s
}

// TryEmit appends record unless that would exceed the high water mark. An
// empty stream always accepts one record so oversized records still flow.
func (s *ByteStream) TryEmit(record []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if s.buf.Len() > 0 && s.buf.Len()+len(record) > s.highWater {
		return false
	}
	s.buf.Write(record)
	s.readable.Broadcast()
	return true
}

// Read blocks until data is available or the stream is closed.
func (s *ByteStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	for s.buf.Len() == 0 && !s.closed {
		s.readable.Wait()
	}
	if s.buf.Len() == 0 {
		s.mu.Unlock()
		return 0, io.EOF
	}
	n, _ := s.buf.Read(p)
	onDemand := s.onDemand
	s.mu.Unlock()

	if onDemand != nil {
		onDemand()
	}
	return n, nil
}

// Buffered returns the number of unread bytes.
func (s *ByteStream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Close rejects further records. Readers drain what is buffered, then get io.EOF.
func (s *ByteStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.readable.Broadcast()
	return nil
}

func (s *ByteStream) setDemandHandler(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDemand = fn
}

// streamChannel is the lossy delivery channel. buffering is true while the
// consumer has capacity.
type streamChannel struct {
	mu        sync.Mutex
	w         StreamWriter
	buffering bool
	written   uint64
	dropped   uint64
	log       *slog.Logger
}

func newStreamChannel(w StreamWriter, log *slog.Logger) *streamChannel {
	return &streamChannel{w: w, buffering: true, log: log}
}

func (c *streamChannel) deliver(ev Event, format string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.buffering {
		c.dropped++
		return
	}

	record, err := encodeRecord(ev, format)
	if err != nil {
		c.log.Warn("Failed to encode stream record", "type", ev.Type, "error", err)
		return
	}

	if !c.w.TryEmit(record) {
		c.buffering = false
		c.dropped++
		c.log.Debug("Stream consumer has no capacity, dropping records until it reads", "type", ev.Type)
		return
	}
	c.written++
}

func (c *streamChannel) requestMore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffering = true
}

func (c *streamChannel) stats() StreamStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return StreamStats{Buffering: c.buffering, Written: c.written, Dropped: c.dropped}
}

// StreamStats reports the state of the stream channel.
type StreamStats struct {
	Buffering bool
	Written   uint64
	Dropped   uint64
}

// encodeRecord renders one self-delimiting record: a newline followed by
// indented JSON, or a YAML document with its --- marker.
func encodeRecord(ev Event, format string) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		buf.WriteString("---\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(ev); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON, "":
		data, err := json.MarshalIndent(ev, "", "  ")
		if err != nil {
			return nil, err
		}
		return append([]byte("\n"), data...), nil
	default:
		return nil, fmt.Errorf("unknown stream format %q", format)
	}
}
