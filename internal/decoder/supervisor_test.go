// ABOUTME: Tests for the decode task and its supervisor
// ABOUTME: Decodes synthetic silent streams through the real MP3 codec into small rings
package decoder

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Sendspin/sendspin-deck/internal/mpeg"
	"github.com/Sendspin/sendspin-deck/internal/mpeg/mpegtest"
	"github.com/Sendspin/sendspin-deck/internal/ring"
	"github.com/Sendspin/sendspin-deck/pkg/audio/decode"
	"github.com/rs/zerolog"
)

func newTestSupervisor(capacity, rate int) *Supervisor {
	return NewSupervisor(Config{
		SampleRate: rate,
		Left:       ring.New(capacity),
		Right:      ring.New(capacity),
		Logger:     zerolog.Nop(),
	})
}

func jobFor(data []byte) Job {
	r := bytes.NewReader(data)
	x := mpeg.Scan(r, int64(len(data)))
	return Job{Source: r, Index: x, Offset: x.Start()}
}

func waitEvent(t *testing.T, s *Supervisor) Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for decoder event")
		return Event{}
	}
}

func waitIdle(t *testing.T, s *Supervisor) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Decoding() {
		if time.Now().After(deadline) {
			t.Fatal("decoder did not finish")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestShortFileReadyAtEOF(t *testing.T) {
	s := newTestSupervisor(44100*4, 44100)
	defer s.Stop()

	data := append(mpegtest.ID3v2(100, false), mpegtest.Frames(mpegtest.Options{Frames: 10})...)
	run := s.Start(jobFor(data))

	ev := waitEvent(t, s)
	if ev.Kind != EventReady || ev.Run != run {
		t.Fatalf("expected ready for run %d, got %+v", run, ev)
	}
	waitIdle(t, s)

	want := 10 * mpeg.SamplesPerFrame
	if got := s.cfg.Left.ReadSpace(); got != want {
		t.Errorf("expected %d samples buffered, got %d", want, got)
	}
	if got := s.cfg.Right.ReadSpace(); got != want {
		t.Errorf("expected right ring to match left, got %d", got)
	}

	st := s.Stats()
	if st.Frames != 10 || st.Bitrate != 128000 {
		t.Errorf("unexpected stats %+v", st)
	}
	if !s.Alive() {
		t.Error("task should count as alive until stopped")
	}
}

func TestRecoverableErrorsKeepDecoding(t *testing.T) {
	s := newTestSupervisor(44100*4, 44100)
	defer s.Stop()

	opt := mpegtest.Options{Frames: 10, Protected: true}
	bad := mpegtest.Frame(opt, false)
	bad[5] ^= 0xFF
	garbage := bytes.Repeat([]byte{0x12, 0x34, 0x56}, 50)

	var data []byte
	data = append(data, mpegtest.Frames(opt)...)
	data = append(data, bad...)
	data = append(data, garbage...)
	data = append(data, mpegtest.Frames(opt)...)
	s.Start(jobFor(data))

	ev := waitEvent(t, s)
	if ev.Kind != EventReady {
		t.Fatalf("expected ready despite recoverable errors, got %+v", ev)
	}
	waitIdle(t, s)

	st := s.Stats()
	if st.BadCRC != 1 {
		t.Errorf("expected 1 bad checksum, got %d", st.BadCRC)
	}
	if st.LostSync != 1 {
		t.Errorf("expected 1 lost sync, got %d", st.LostSync)
	}
	if st.Frames != 21 {
		t.Errorf("expected 21 frames decoded, got %d", st.Frames)
	}
	if got, want := s.cfg.Left.ReadSpace(), 21*mpeg.SamplesPerFrame; got != want {
		t.Errorf("expected %d samples buffered, got %d", want, got)
	}
}

func TestReadyWhenRingFills(t *testing.T) {
	s := newTestSupervisor(4096, 44100)
	defer s.Stop()

	s.Start(jobFor(mpegtest.Frames(mpegtest.Options{Frames: 40})))

	ev := waitEvent(t, s)
	if ev.Kind != EventReady {
		t.Fatalf("expected ready, got %+v", ev)
	}
	if !s.Decoding() {
		t.Fatal("task should still be decoding with a full ring")
	}
	if s.cfg.Left.WriteSpace() != 0 {
		t.Errorf("expected full ring, %d free", s.cfg.Left.WriteSpace())
	}

	// Drain until the task reaches the end.
	buf := make([]float32, 1024)
	total := 0
	deadline := time.Now().Add(5 * time.Second)
	for s.Decoding() || s.cfg.Left.ReadSpace() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out draining")
		}
		n := s.cfg.Left.Read(buf)
		s.cfg.Right.Read(buf[:n])
		total += n
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	if want := 40 * mpeg.SamplesPerFrame; total != want {
		t.Errorf("expected %d samples, got %d", want, total)
	}

	select {
	case ev := <-s.Events():
		t.Errorf("ready should only be sent once, got %+v", ev)
	default:
	}
}

func TestNoAudio(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", bytes.Repeat([]byte{0x00, 0x11, 0x22}, 2000)},
		{"tag only", append(mpegtest.ID3v2(500, false), mpegtest.ID3v1()...)},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSupervisor(44100, 44100)
			defer s.Stop()

			s.Start(jobFor(tt.data))
			ev := waitEvent(t, s)
			if ev.Kind != EventFailed || !errors.Is(ev.Err, ErrNoAudio) {
				t.Errorf("expected ErrNoAudio failure, got %+v", ev)
			}
		})
	}
}

func TestSampleRateMismatch(t *testing.T) {
	s := newTestSupervisor(44100, 44100)
	defer s.Stop()

	s.Start(jobFor(mpegtest.Frames(mpegtest.Options{Frames: 10, SampleRate: 48000})))
	ev := waitEvent(t, s)
	if ev.Kind != EventFailed || !errors.Is(ev.Err, ErrSampleRateMismatch) {
		t.Fatalf("expected sample rate failure, got %+v", ev)
	}
	waitIdle(t, s)
	if s.cfg.Left.ReadSpace() != 0 {
		t.Error("no audio should reach the ring")
	}
}

func TestStartFromOffset(t *testing.T) {
	s := newTestSupervisor(44100*4, 44100)
	defer s.Stop()

	data := mpegtest.Frames(mpegtest.Options{Frames: 100})
	job := jobFor(data)
	job.Index.Learn(mustHeader(t, data))
	p, err := job.Index.Seek(1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job.Offset = p.Offset

	s.Start(job)
	if ev := waitEvent(t, s); ev.Kind != EventReady {
		t.Fatalf("expected ready, got %+v", ev)
	}
	waitIdle(t, s)

	want := int(100-p.Frame) * mpeg.SamplesPerFrame
	if got := s.cfg.Left.ReadSpace(); got != want {
		t.Errorf("expected %d samples from frame %d, got %d", want, p.Frame, got)
	}
}

func mustHeader(t *testing.T, data []byte) mpeg.Header {
	t.Helper()
	h, err := mpeg.ParseHeader(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return h
}

func TestStopWhileRingFull(t *testing.T) {
	s := newTestSupervisor(2048, 44100)

	s.Start(jobFor(mpegtest.Frames(mpegtest.Options{Frames: 200})))
	if ev := waitEvent(t, s); ev.Kind != EventReady {
		t.Fatalf("expected ready, got %+v", ev)
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	if s.Decoding() || s.Alive() {
		t.Errorf("expected stopped task, decoding=%v alive=%v", s.Decoding(), s.Alive())
	}
	s.Stop()
}

func TestRestartResetsRings(t *testing.T) {
	s := newTestSupervisor(2048, 44100)
	defer s.Stop()

	data := mpegtest.Frames(mpegtest.Options{Frames: 200})
	first := s.Start(jobFor(data))
	if ev := waitEvent(t, s); ev.Run != first {
		t.Fatalf("expected event from run %d, got %+v", first, ev)
	}

	second := s.Start(jobFor(data))
	if second != first+1 || s.Run() != second {
		t.Errorf("expected run id %d, got %d", first+1, second)
	}
	ev := waitEvent(t, s)
	if ev.Run != second || ev.Kind != EventReady {
		t.Errorf("expected ready from run %d, got %+v", second, ev)
	}
	if st := s.Stats(); st.Frames == 0 || st.Frames > 200 {
		t.Errorf("stats should restart per run, got %+v", st)
	}
}

type failingCodec struct{}

func (failingCodec) Read([]byte) (int, error) { return 0, errors.New("corrupt main data") }
func (failingCodec) SampleRate() int          { return 44100 }

func TestCodecError(t *testing.T) {
	s := NewSupervisor(Config{
		SampleRate: 44100,
		Left:       ring.New(4096),
		Right:      ring.New(4096),
		Logger:     zerolog.Nop(),
		NewDecoder: func(io.Reader) (decode.Decoder, error) { return failingCodec{}, nil },
	})
	defer s.Stop()

	s.Start(jobFor(mpegtest.Frames(mpegtest.Options{Frames: 4})))
	ev := waitEvent(t, s)
	if ev.Kind != EventFailed || ev.Err == nil {
		t.Errorf("expected codec failure, got %+v", ev)
	}
}

// slowCodec wraps the MP3 codec and sleeps before every read.
type slowCodec struct {
	decode.Decoder
	delay time.Duration
}

func (c slowCodec) Read(p []byte) (int, error) {
	time.Sleep(c.delay)
	return c.Decoder.Read(p)
}

func TestSlowCodecStillDecodes(t *testing.T) {
	s := NewSupervisor(Config{
		SampleRate: 44100,
		Left:       ring.New(44100),
		Right:      ring.New(44100),
		Logger:     zerolog.Nop(),
		NewDecoder: func(r io.Reader) (decode.Decoder, error) {
			d, err := decode.NewMP3(r)
			if err != nil {
				return nil, err
			}
			return slowCodec{Decoder: d, delay: 2 * time.Millisecond}, nil
		},
	})
	defer s.Stop()

	s.Start(jobFor(mpegtest.Frames(mpegtest.Options{Frames: 5})))
	if !s.Decoding() {
		t.Error("expected task to be decoding right after start")
	}
	if ev := waitEvent(t, s); ev.Kind != EventReady {
		t.Fatalf("expected ready, got %+v", ev)
	}
	waitIdle(t, s)
	if got := s.cfg.Left.ReadSpace(); got != 5*mpeg.SamplesPerFrame {
		t.Errorf("expected all samples, got %d", got)
	}
}
