package logsink

import (
	"sync"
	"unicode/utf8"

	"github.com/core-tools/hsu-compose/pkg/errors"
)

// Stream identifies one of the four buffers kept per unit
type Stream string

const (
	ComposeStdout Stream = "compose-stdout"
	ComposeStderr Stream = "compose-stderr"
	Tail          Stream = "tail"
	ExecIO        Stream = "exec-io"
)

// Streams lists every buffer in display order
var Streams = []Stream{ComposeStdout, ComposeStderr, Tail, ExecIO}

// DefaultMaxBytes bounds each buffer; older text is dropped from the front
const DefaultMaxBytes = 4 * 1024 * 1024

// A buffer over its limit is trimmed down to three quarters of the limit
const trimNumerator, trimDenominator = 3, 4

// ParseStream validates a stream name coming from an external caller
func ParseStream(name string) (Stream, error) {
	for _, stream := range Streams {
		if string(stream) == name {
			return stream, nil
		}
	}
	return "", errors.NewValidationError("unknown log stream: "+name, nil).WithContext("stream", name)
}

// Listener is called after a buffer changed. caret is the new caret of stream.
// Listeners run on the appending goroutine, outside the sink lock.
type Listener func(stream Stream, caret int64)

// Mirror receives every appended chunk, e.g. to persist it to disk
type Mirror interface {
	Write(stream Stream, text string) error
}

type buffer struct {
	text []byte
	// base is the number of bytes dropped by clears and trimming
	base int64
}

func (b *buffer) caret() int64 {
	return b.base + int64(len(b.text))
}

// trim drops text from the front until at most keep bytes remain. The cut is
// moved forward to a rune start so the text stays valid UTF-8.
func (b *buffer) trim(keep int) {
	drop := len(b.text) - keep
	if drop <= 0 {
		return
	}
	for drop < len(b.text) && !utf8.RuneStart(b.text[drop]) {
		drop++
	}
	n := copy(b.text, b.text[drop:])
	b.text = b.text[:n]
	b.base += int64(drop)
}

// Sink holds the four append-only text buffers of a unit.
//
// All buffers share one lock. The caret of a buffer is the total number of
// bytes ever appended to it, so it never decreases, even across ClearAll.
type Sink struct {
	mutex     sync.Mutex
	buffers   map[Stream]*buffer
	maxBytes  int
	listeners map[int]Listener
	nextID    int
	mirror    Mirror
}

func NewSink() *Sink {
	return NewSinkWithLimit(DefaultMaxBytes)
}

func NewSinkWithLimit(maxBytes int) *Sink {
	buffers := make(map[Stream]*buffer, len(Streams))
	for _, stream := range Streams {
		buffers[stream] = &buffer{}
	}
	return &Sink{
		buffers:   buffers,
		maxBytes:  maxBytes,
		listeners: make(map[int]Listener),
	}
}

// SetMirror installs a mirror that sees every later append
func (s *Sink) SetMirror(mirror Mirror) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.mirror = mirror
}

// Append adds text to stream. Unknown streams and empty text are ignored.
func (s *Sink) Append(stream Stream, text string) {
	if text == "" {
		return
	}

	s.mutex.Lock()
	buf, ok := s.buffers[stream]
	if !ok {
		s.mutex.Unlock()
		return
	}
	buf.text = append(buf.text, text...)
	if s.maxBytes > 0 && len(buf.text) > s.maxBytes {
		buf.trim(s.maxBytes / trimDenominator * trimNumerator)
	}
	caret := buf.caret()
	mirror := s.mirror
	listeners := s.snapshotListeners()
	s.mutex.Unlock()

	if mirror != nil {
		_ = mirror.Write(stream, text)
	}
	for _, listener := range listeners {
		listener(stream, caret)
	}
}

// Writer returns a line callback bound to stream
func (s *Sink) Writer(stream Stream) func(string) {
	return func(text string) {
		s.Append(stream, text)
	}
}

// Text returns the accumulated text of stream
func (s *Sink) Text(stream Stream) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if buf, ok := s.buffers[stream]; ok {
		return string(buf.text)
	}
	return ""
}

// Caret returns the monotonic length of stream
func (s *Sink) Caret(stream Stream) int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if buf, ok := s.buffers[stream]; ok {
		return buf.caret()
	}
	return 0
}

// Since returns the text appended to stream after caret. When part of that
// text was already cleared or trimmed, everything still held is returned.
func (s *Sink) Since(stream Stream, caret int64) (string, int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	buf, ok := s.buffers[stream]
	if !ok {
		return "", 0
	}
	offset := caret - buf.base
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(buf.text)) {
		offset = int64(len(buf.text))
	}
	return string(buf.text[offset:]), buf.caret()
}

// ClearAll empties all four buffers under one lock acquisition
func (s *Sink) ClearAll() {
	s.mutex.Lock()
	carets := make(map[Stream]int64, len(s.buffers))
	for stream, buf := range s.buffers {
		buf.base += int64(len(buf.text))
		buf.text = nil
		carets[stream] = buf.caret()
	}
	listeners := s.snapshotListeners()
	s.mutex.Unlock()

	for _, stream := range Streams {
		for _, listener := range listeners {
			listener(stream, carets[stream])
		}
	}
}

// Subscribe registers a listener and returns its cancel func
func (s *Sink) Subscribe(listener Listener) func() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	return func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		delete(s.listeners, id)
	}
}

// Must be called with the lock held
func (s *Sink) snapshotListeners() []Listener {
	if len(s.listeners) == 0 {
		return nil
	}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	return listeners
}
