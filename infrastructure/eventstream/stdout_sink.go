package eventstream

import (
	"bufio"
	"io"
	"sync"
)

// StdoutSink writes each event as one line to an underlying writer
// (typically os.Stdout), flushing immediately so a parent process tailing
// the pipe sees lines as they're produced.
type StdoutSink struct {
	mu  sync.Mutex
	out *bufio.Writer
}

// NewStdoutSink wraps w.
func NewStdoutSink(w io.Writer) *StdoutSink {
	return &StdoutSink{out: bufio.NewWriter(w)}
}

func (s *StdoutSink) EmitLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.out.WriteString(line); err != nil {
		return err
	}
	if err := s.out.WriteByte('\n'); err != nil {
		return err
	}
	return s.out.Flush()
}

// MemorySink collects lines in memory; used by tests and by any consumer
// that wants to inspect emitted events without a real writer.
type MemorySink struct {
	mu    sync.Mutex
	Lines []string
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) EmitLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lines = append(s.Lines, line)
	return nil
}

func (s *MemorySink) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Lines))
	copy(out, s.Lines)
	return out
}
