package speakerout

import (
	"testing"

	"github.com/gopxl/beep/v2"
)

// rampStreamer emits n samples valued 1..n and supports Seek.
type rampStreamer struct {
	n, pos int
	closed bool
}

func (r *rampStreamer) Stream(samples [][2]float64) (int, bool) {
	if r.pos >= r.n {
		return 0, false
	}
	i := 0
	for ; i < len(samples) && r.pos < r.n; i++ {
		r.pos++
		samples[i] = [2]float64{float64(r.pos), float64(r.pos)}
	}
	return i, true
}

func (r *rampStreamer) Err() error       { return nil }
func (r *rampStreamer) Len() int         { return r.n }
func (r *rampStreamer) Position() int    { return r.pos }
func (r *rampStreamer) Seek(p int) error { r.pos = p; return nil }
func (r *rampStreamer) Close() error     { r.closed = true; return nil }

var _ beep.StreamSeekCloser = (*rampStreamer)(nil)

func TestVoiceSilentWhenEmpty(t *testing.T) {
	v := &voice{}
	buf := make([][2]float64, 4)
	buf[0] = [2]float64{9, 9}
	n, ok := v.Stream(buf)
	if n != 4 || !ok {
		t.Fatalf("Stream = %d, %v; want 4, true", n, ok)
	}
	for i, s := range buf {
		if s != [2]float64{} {
			t.Errorf("sample %d = %v, want silence", i, s)
		}
	}
}

func TestVoiceStopsAtEnd(t *testing.T) {
	r := &rampStreamer{n: 3}
	v := &voice{}
	v.swap(r, r)

	buf := make([][2]float64, 5)
	v.Stream(buf)
	want := []float64{1, 2, 3, 0, 0}
	for i, w := range want {
		if buf[i][0] != w {
			t.Errorf("sample %d = %v, want %v", i, buf[i][0], w)
		}
	}
	if !v.done {
		t.Error("voice should be done after a non-looping track ends")
	}
}

func TestVoiceLoops(t *testing.T) {
	r := &rampStreamer{n: 2}
	v := &voice{loop: true}
	v.swap(r, r)

	buf := make([][2]float64, 5)
	v.Stream(buf)
	want := []float64{1, 2, 1, 2, 1}
	for i, w := range want {
		if buf[i][0] != w {
			t.Errorf("sample %d = %v, want %v", i, buf[i][0], w)
		}
	}
	if v.done {
		t.Error("looping voice should not finish")
	}
}

func TestVoiceLoopEmptyTrack(t *testing.T) {
	r := &rampStreamer{n: 0}
	v := &voice{loop: true}
	v.swap(r, r)

	buf := make([][2]float64, 3)
	if n, _ := v.Stream(buf); n != 3 {
		t.Fatalf("Stream = %d, want 3", n)
	}
	if !v.done {
		t.Error("empty looping track should be marked done")
	}
}

func TestVoiceSwapReturnsOld(t *testing.T) {
	a := &rampStreamer{n: 1}
	b := &rampStreamer{n: 1}
	v := &voice{}
	if old := v.swap(a, a); old != nil {
		t.Errorf("first swap returned %v", old)
	}
	v.done = true
	if old := v.swap(b, b); old != a {
		t.Error("swap should return the previous stream")
	}
	if v.done {
		t.Error("swap should clear done")
	}
}
