package playback

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vinealabs/go-sommelier/pkg/audioio"
)

type sinkRecorder struct {
	mu    sync.Mutex
	sinks []*audioio.MockSink
}

func (r *sinkRecorder) factory(cfg audioio.Config, logger *slog.Logger) (audioio.Sink, error) {
	s := audioio.NewMockSink(cfg, logger)
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
	return s, nil
}

func (r *sinkRecorder) sink(t *testing.T, i int) *audioio.MockSink {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= len(r.sinks) {
		t.Fatalf("sink %d not created (have %d)", i, len(r.sinks))
	}
	return r.sinks[i]
}

// testClip returns a WAV clip of the given duration at 16kHz.
func testClip(t *testing.T, d time.Duration) []byte {
	t.Helper()
	n := int(16000 * d.Seconds())
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	data, err := audioio.EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return data
}

func TestPlayToCompletion(t *testing.T) {
	rec := &sinkRecorder{}
	m := New(rec.factory, nil)

	ended := make(chan struct{})
	h, err := m.Play(context.Background(), Source{Data: testClip(t, 200*time.Millisecond)}, func() { close(ended) })
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	select {
	case <-ended:
	case <-time.After(3 * time.Second):
		t.Fatal("onEnded never fired")
	}
	<-h.Done()

	sink := rec.sink(t, 0)
	var total int
	for _, chunk := range sink.Written() {
		total += len(chunk.Samples)
	}
	if want := int(16000 * 0.2); total != want {
		t.Errorf("wrote %d samples, want %d", total, want)
	}

	if m.Current() != nil {
		t.Error("current handle not released after natural end")
	}
}

func TestPlaySupersedesCurrent(t *testing.T) {
	rec := &sinkRecorder{}
	m := New(rec.factory, nil)

	firstEnded := make(chan struct{}, 1)
	first, err := m.Play(context.Background(), Source{Data: testClip(t, 2*time.Second)}, func() { firstEnded <- struct{}{} })
	if err != nil {
		t.Fatalf("first Play: %v", err)
	}

	secondEnded := make(chan struct{})
	second, err := m.Play(context.Background(), Source{Data: testClip(t, 100*time.Millisecond)}, func() { close(secondEnded) })
	if err != nil {
		t.Fatalf("second Play: %v", err)
	}

	// The first handle must be fully torn down before the second runs.
	select {
	case <-first.Done():
	default:
		t.Error("first playback still running after second Play")
	}

	select {
	case <-secondEnded:
	case <-time.After(3 * time.Second):
		t.Fatal("second onEnded never fired")
	}
	<-second.Done()

	select {
	case <-firstEnded:
		t.Error("superseded playback fired onEnded")
	default:
	}
}

func TestStopDoesNotFireOnEnded(t *testing.T) {
	rec := &sinkRecorder{}
	m := New(rec.factory, nil)

	ended := make(chan struct{}, 1)
	h, err := m.Play(context.Background(), Source{Data: testClip(t, 2*time.Second)}, func() { ended <- struct{}{} })
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	h.Stop()
	h.Stop() // idempotent

	select {
	case <-ended:
		t.Error("onEnded fired after Stop")
	default:
	}
	if m.Current() != nil {
		t.Error("current handle not released after Stop")
	}
	if rec.sink(t, 0).ClearCount() == 0 {
		t.Error("Stop did not clear buffered audio")
	}
}

func TestStopAll(t *testing.T) {
	rec := &sinkRecorder{}
	m := New(rec.factory, nil)

	_, err := m.Play(context.Background(), Source{Data: testClip(t, 2*time.Second)}, nil)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	m.StopAll()

	if m.Current() != nil {
		t.Error("current handle survived StopAll")
	}
	m.mu.Lock()
	n := len(m.handles)
	m.mu.Unlock()
	if n != 0 {
		t.Errorf("%d handles still tracked after StopAll", n)
	}
}

func TestFadeOut(t *testing.T) {
	rec := &sinkRecorder{}
	m := New(rec.factory, nil)

	h, err := m.Play(context.Background(), Source{Data: testClip(t, 2*time.Second)}, nil)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	start := time.Now()
	h.FadeOut(200 * time.Millisecond)
	elapsed := time.Since(start)

	if elapsed < 150*time.Millisecond {
		t.Errorf("fade completed in %v, want ~200ms ramp", elapsed)
	}
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("playback still running after FadeOut")
	}
	if gain := rec.sink(t, 0).Gain(); gain != 0 {
		t.Errorf("gain = %v after fade, want 0", gain)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	rec := &sinkRecorder{}
	m := New(rec.factory, nil)

	h, err := m.Play(context.Background(), Source{Data: testClip(t, time.Second)}, nil)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	defer h.Stop()

	h.SetVolume(1.5)
	if h.Volume() != 1.0 {
		t.Errorf("volume = %v, want clamp to 1.0", h.Volume())
	}
	h.SetVolume(-0.5)
	if h.Volume() != 0 {
		t.Errorf("volume = %v, want clamp to 0", h.Volume())
	}
	if gain := rec.sink(t, 0).Gain(); gain != 0 {
		t.Errorf("sink gain = %v, want 0", gain)
	}
}

func TestPlayEmptySource(t *testing.T) {
	m := New((&sinkRecorder{}).factory, nil)
	_, err := m.Play(context.Background(), Source{}, nil)
	if !errors.Is(err, ErrEmptySource) {
		t.Errorf("err = %v, want ErrEmptySource", err)
	}
}

func TestPlayFromURL(t *testing.T) {
	clip := testClip(t, 100*time.Millisecond)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", audioio.WAVMimeType)
		w.Write(clip)
	}))
	defer server.Close()

	rec := &sinkRecorder{}
	m := New(rec.factory, nil)

	ended := make(chan struct{})
	_, err := m.Play(context.Background(), Source{URL: server.URL}, func() { close(ended) })
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	select {
	case <-ended:
	case <-time.After(3 * time.Second):
		t.Fatal("onEnded never fired for URL source")
	}
}

func TestDecodeDetectsFormats(t *testing.T) {
	wav := testClip(t, 50*time.Millisecond)
	if !isWAV(wav) {
		t.Error("WAV signature not detected")
	}
	if isMP3(wav, "") {
		t.Error("WAV misdetected as MP3")
	}
	if !isMP3([]byte("ID3\x04rest"), "") {
		t.Error("ID3 header not detected")
	}
	if !isMP3([]byte{0xFF, 0xFB, 0x90}, "") {
		t.Error("MPEG frame sync not detected")
	}
	if !isMP3(nil, "audio/mpeg") {
		t.Error("MIME hint not honored")
	}

	samples, cfg, err := decode(wav, audioio.WAVMimeType)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", cfg.SampleRate)
	}
	if len(samples) != int(16000*0.05) {
		t.Errorf("decoded %d samples", len(samples))
	}
}

func TestDecodeRawPCM(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	data := audioio.SamplesToBytes(samples)

	got, cfg, err := decode(data, "")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.SampleRate != pcmSampleRate {
		t.Errorf("sample rate = %d, want %d", cfg.SampleRate, pcmSampleRate)
	}
	if len(got) != len(samples) {
		t.Errorf("decoded %d samples, want %d", len(got), len(samples))
	}
}

func TestPlayPacesInRealTime(t *testing.T) {
	rec := &sinkRecorder{}
	m := New(rec.factory, nil)

	start := time.Now()
	h, err := m.Play(context.Background(), Source{Data: testClip(t, 200*time.Millisecond)}, nil)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	<-h.Done()

	elapsed := time.Since(start)
	if elapsed < 150*time.Millisecond {
		t.Errorf("200ms clip finished in %v, playback is not paced by chunk duration", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("200ms clip took %v", elapsed)
	}
}
