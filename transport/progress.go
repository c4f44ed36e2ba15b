package transport

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

// Progress is the optional display collaborator transports report to. Add
// is called with byte increments as they arrive. Implementations must
// tolerate a zero or unknown total.
type Progress interface {
	SetTotal(bytes int64)
	Add(bytes int64)
	Reset()
	Close() error
}

// progressWriter tees byte counts into a Progress as they are written.
type progressWriter struct {
	w io.Writer
	p Progress
}

func (pw *progressWriter) Write(b []byte) (int, error) {
	n, err := pw.w.Write(b)
	if n > 0 {
		pw.p.Add(int64(n))
	}
	return n, err
}

// reportTo wraps w so writes are reported to p, which may be nil.
func reportTo(w io.Writer, p Progress, total int64) io.Writer {
	if p == nil {
		return w
	}
	p.Reset()
	if total > 0 {
		p.SetTotal(total)
	}
	return &progressWriter{w: w, p: p}
}

// Bar adapts a cheggaaa progress bar to the Progress interface.
type Bar struct {
	bar *pb.ProgressBar
}

// NewBar returns a started byte-count progress bar.
func NewBar() *Bar {
	bar := pb.New64(0)
	bar.Set(pb.Bytes, true)
	return &Bar{bar: bar.Start()}
}

func (b *Bar) SetTotal(bytes int64) { b.bar.SetTotal(bytes) }
func (b *Bar) Add(bytes int64)      { b.bar.Add64(bytes) }
func (b *Bar) Reset()               { b.bar.SetCurrent(0) }

func (b *Bar) Close() error {
	b.bar.Finish()
	return nil
}
