// Package speakerout plays audioio buffers through the system output
// using beep. Importing it registers the "speaker" backend.
package speakerout

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/teslashibe/go-soundscape/pkg/audioio"
)

func init() {
	audioio.Register(audioio.BackendSpeaker, func(cfg audioio.Config, name string, logger *slog.Logger) (audioio.Buffer, error) {
		b, err := New(cfg, name, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	})
}

var (
	speakerOnce sync.Once
	speakerErr  error
	speakerRate beep.SampleRate
)

// initSpeaker opens the system output once per process. Later buffers
// share the first configuration's rate.
func initSpeaker(cfg audioio.Config) error {
	speakerOnce.Do(func() {
		speakerRate = beep.SampleRate(cfg.SampleRate)
		speakerErr = speaker.Init(speakerRate, speakerRate.N(cfg.BufferDuration))
	})
	return speakerErr
}

// Buffer is a voice permanently attached to the speaker mixer.
// It produces silence while paused or empty. Fields shared with the
// mixer goroutine are guarded by speaker.Lock.
type Buffer struct {
	name   string
	dir    string
	logger *slog.Logger

	// guarded by speaker.Lock
	ctrl   *beep.Ctrl
	gain   *effects.Gain
	voice  *voice
	closed bool

	source    atomic.Value // string
	volume    atomic.Uint64
	loadMu    sync.Mutex
	closeOnce sync.Once
}

// New opens the speaker on first use and attaches a silent voice to it.
func New(cfg audioio.Config, name string, logger *slog.Logger) (*Buffer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := initSpeaker(cfg); err != nil {
		return nil, fmt.Errorf("speaker init: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Buffer{
		name:   name,
		dir:    cfg.AssetDir,
		logger: logger.With("component", "audioio.speakerout", "buffer", name),
		voice:  &voice{},
	}
	b.source.Store("")
	b.gain = &effects.Gain{Streamer: b.voice, Gain: -1}
	b.ctrl = &beep.Ctrl{Streamer: b.gain, Paused: true}

	speaker.Play(b.ctrl)
	return b, nil
}

func (b *Buffer) Name() string { return b.name }

func (b *Buffer) Source() string {
	return b.source.Load().(string)
}

func (b *Buffer) resolve(src string) string {
	if filepath.IsAbs(src) || b.dir == "" {
		return src
	}
	return filepath.Join(b.dir, src)
}

// Load decodes src and swaps it in as the current stream.
func (b *Buffer) Load(src string) error {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()

	path := b.resolve(src)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".wav":
		stream, format, err = wav.Decode(f)
	case ".ogg", ".oga":
		stream, format, err = vorbis.Decode(f)
	default:
		err = fmt.Errorf("%w: %s", audioio.ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", path, err)
	}

	var out beep.Streamer = stream
	if format.SampleRate != speakerRate {
		out = beep.Resample(4, format.SampleRate, speakerRate, stream)
	}

	speaker.Lock()
	if b.closed {
		speaker.Unlock()
		stream.Close()
		return audioio.ErrClosed
	}
	old := b.voice.swap(stream, out)
	b.ctrl.Paused = true
	speaker.Unlock()

	if old != nil {
		old.Close()
	}
	b.source.Store(src)

	b.logger.Debug("track loaded",
		"source", src,
		"sample_rate", int(format.SampleRate),
		"channels", format.NumChannels,
	)
	return nil
}

func (b *Buffer) Ready() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return !b.closed && b.voice.src != nil
}

func (b *Buffer) Play() error {
	speaker.Lock()
	defer speaker.Unlock()
	if b.closed {
		return audioio.ErrClosed
	}
	if b.voice.src == nil {
		return audioio.ErrNotLoaded
	}
	if b.voice.done {
		if err := b.voice.seek0(); err != nil {
			return err
		}
	}
	b.ctrl.Paused = false
	return nil
}

func (b *Buffer) Pause() {
	speaker.Lock()
	b.ctrl.Paused = true
	speaker.Unlock()
}

func (b *Buffer) Rewind() error {
	speaker.Lock()
	defer speaker.Unlock()
	if b.voice.src == nil {
		return nil
	}
	return b.voice.seek0()
}

// SetVolume maps linear gain v onto effects.Gain, which scales by 1+Gain.
func (b *Buffer) SetVolume(v float64) {
	v = min(max(v, 0), 1)
	b.volume.Store(math.Float64bits(v))
	speaker.Lock()
	b.gain.Gain = v - 1
	speaker.Unlock()
}

func (b *Buffer) Volume() float64 {
	return math.Float64frombits(b.volume.Load())
}

func (b *Buffer) SetLoop(loop bool) {
	speaker.Lock()
	b.voice.loop = loop
	speaker.Unlock()
}

func (b *Buffer) Playing() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return !b.closed && !b.ctrl.Paused && b.voice.src != nil && !b.voice.done
}

// Close detaches the voice from the mixer and closes the stream.
func (b *Buffer) Close() error {
	var err error
	b.closeOnce.Do(func() {
		speaker.Lock()
		b.closed = true
		b.ctrl.Streamer = nil
		old := b.voice.swap(nil, nil)
		speaker.Unlock()
		if old != nil {
			err = old.Close()
		}
	})
	return err
}

// voice streams the current track, looping or going silent at the end.
// It never reports exhaustion so it stays in the mixer.
type voice struct {
	decoded beep.StreamSeekCloser
	src     beep.Streamer
	loop    bool
	done    bool
}

func (v *voice) swap(decoded beep.StreamSeekCloser, src beep.Streamer) beep.StreamSeekCloser {
	old := v.decoded
	v.decoded, v.src, v.done = decoded, src, false
	return old
}

func (v *voice) seek0() error {
	v.done = false
	return v.decoded.Seek(0)
}

func (v *voice) Stream(samples [][2]float64) (int, bool) {
	filled := 0
	rewound := false
	for filled < len(samples) && v.src != nil && !v.done {
		n, ok := v.src.Stream(samples[filled:])
		filled += n
		if ok && n > 0 {
			rewound = false
			continue
		}
		// End of track. An empty read right after a rewind means the
		// track has no samples at all.
		if !v.loop || rewound || v.decoded.Seek(0) != nil {
			v.done = true
			break
		}
		rewound = n == 0
	}
	clear(samples[filled:])
	return len(samples), true
}

func (v *voice) Err() error { return nil }

var _ audioio.Buffer = (*Buffer)(nil)
