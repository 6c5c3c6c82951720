// Package outsink implements the Output Sink: a serialised append-only
// stream of detected-electron records, written through per-worker fixed
// capacity buffers so that writers interleave only at buffer boundaries.
package outsink

import (
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/nebula-sim/nebula/internal/particle"
)

// RecordSize is the fixed on-disk size of one detected-particle record:
// 7 little-endian float32s followed by 2 little-endian int32s.
const RecordSize = 7*4 + 2*4

// BufferCapacity is the per-worker output buffer size in records, matching
// spec §4.2's `1024 × (7·sizeof(float) + 2·sizeof(int))` byte budget.
const BufferCapacity = 1024

// Sink is the bottom-level serialised writer shared by all workers. It is
// the serialisation boundary: writes from different per-worker Writers are
// interleaved only between whole buffers, never mid-record.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSink wraps w as the single serialised bottom-level writer.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

func (s *Sink) writeAtomic(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(buf)
	return err
}

// Close drains the sink if the underlying writer supports flushing.
// Callers must Flush every worker Writer before calling Close.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Writer is the top-level per-worker output buffer. Not safe for
// concurrent use by multiple goroutines; each worker owns exactly one.
type Writer struct {
	sink *Sink
	buf  []byte
	n    int // bytes used in buf
}

// NewWriter constructs a per-worker Writer backed by sink.
func NewWriter(sink *Sink) *Writer {
	return &Writer{sink: sink, buf: make([]byte, BufferCapacity*RecordSize)}
}

// Add appends one detected record and flushes to the sink atomically when
// the buffer fills.
func (w *Writer) Add(rec particle.Record) error {
	if w.n+RecordSize > len(w.buf) {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	encodeRecord(w.buf[w.n:w.n+RecordSize], rec)
	w.n += RecordSize
	return nil
}

// Flush forces a write of whatever is currently buffered.
func (w *Writer) Flush() error {
	if w.n == 0 {
		return nil
	}
	err := w.sink.writeAtomic(w.buf[:w.n])
	w.n = 0
	return err
}

func encodeRecord(dst []byte, rec particle.Record) {
	putFloat := func(off int, v float32) {
		binary.LittleEndian.PutUint32(dst[off:off+4], math.Float32bits(v))
	}
	putFloat(0, rec.Position.X())
	putFloat(4, rec.Position.Y())
	putFloat(8, rec.Position.Z())
	putFloat(12, rec.Direction.X())
	putFloat(16, rec.Direction.Y())
	putFloat(20, rec.Direction.Z())
	putFloat(24, rec.Energy)
	binary.LittleEndian.PutUint32(dst[28:32], uint32(rec.Pixel.X))
	binary.LittleEndian.PutUint32(dst[32:36], uint32(rec.Pixel.Y))
}

// DecodeRecord is the inverse of encodeRecord, used by cmd/nebula-view to
// replay a written stream.
func DecodeRecord(src []byte) particle.Record {
	getFloat := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(src[off : off+4]))
	}
	return particle.Record{
		Position:  mgl32.Vec3{getFloat(0), getFloat(4), getFloat(8)},
		Direction: mgl32.Vec3{getFloat(12), getFloat(16), getFloat(20)},
		Energy:    getFloat(24),
		Pixel: particle.Pixel{
			X: int32(binary.LittleEndian.Uint32(src[28:32])),
			Y: int32(binary.LittleEndian.Uint32(src[32:36])),
		},
	}
}
