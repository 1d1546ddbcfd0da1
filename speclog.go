package block_exec

import (
	"bytes"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// SpecLogSink buffers execution-time diagnostics per transaction index.
// Everything logged during speculative execution may describe work that is
// later discarded, so nothing reaches the output writer until the engine
// replays the entries of a committed transaction. Re-executing an index
// replaces whatever its previous attempt logged.
type SpecLogSink struct {
	mutex sync.Mutex
	bufs  map[TxnIndex]*bytes.Buffer
	out   io.Writer
}

func NewSpecLogSink(out io.Writer) *SpecLogSink {
	if out == nil {
		out = io.Discard
	}
	return &SpecLogSink{
		bufs: make(map[TxnIndex]*bytes.Buffer),
		out:  out,
	}
}

// At starts a fresh attempt for the index and returns a logger scoped to it.
func (s *SpecLogSink) At(idx TxnIndex) zerolog.Logger {
	s.mutex.Lock()
	s.bufs[idx] = &bytes.Buffer{}
	s.mutex.Unlock()
	return zerolog.New(&specWriter{sink: s, idx: idx}).With().Int("txn", int(idx)).Logger()
}

// Replay flushes the buffered entries of a committed index to the output.
func (s *SpecLogSink) Replay(idx TxnIndex) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if buf, ok := s.bufs[idx]; ok {
		_, _ = s.out.Write(buf.Bytes())
		delete(s.bufs, idx)
	}
}

// Discard drops the buffered entries of an invalidated or skipped index.
func (s *SpecLogSink) Discard(idx TxnIndex) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.bufs, idx)
}

// Buffered returns the pending entries of an index, for inspection.
func (s *SpecLogSink) Buffered(idx TxnIndex) []byte {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	buf, ok := s.bufs[idx]
	if !ok {
		return nil
	}
	return append([]byte(nil), buf.Bytes()...)
}

type specWriter struct {
	sink *SpecLogSink
	idx  TxnIndex
}

func (w *specWriter) Write(p []byte) (int, error) {
	w.sink.mutex.Lock()
	defer w.sink.mutex.Unlock()
	buf, ok := w.sink.bufs[w.idx]
	if !ok {
		buf = &bytes.Buffer{}
		w.sink.bufs[w.idx] = buf
	}
	return buf.Write(p)
}
