package playback

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/hajimehoshi/go-mp3"

	"github.com/vinealabs/go-sommelier/pkg/audioio"
)

// pcmSampleRate is assumed for raw PCM sources with no header, matching
// the speech API's pcm output format.
const pcmSampleRate = 24000

// decode turns audio bytes into mono PCM16 samples plus a device config.
// WAV and MP3 are detected by signature; anything else is treated as raw
// 24kHz mono PCM16.
func decode(data []byte, mime string) ([]int16, audioio.Config, error) {
	switch {
	case isWAV(data):
		return decodeWAV(data)
	case isMP3(data, mime):
		return decodeMP3(data)
	default:
		return decodePCM(data)
	}
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

func isMP3(data []byte, mime string) bool {
	if strings.Contains(mime, "mpeg") || strings.Contains(mime, "mp3") {
		return true
	}
	if len(data) >= 3 && bytes.Equal(data[:3], []byte("ID3")) {
		return true
	}
	// MPEG frame sync: 11 set bits.
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

func decodeWAV(data []byte) ([]int16, audioio.Config, error) {
	samples, rate, err := audioio.DecodeWAV(data)
	if err != nil {
		return nil, audioio.Config{}, fmt.Errorf("playback: decode wav: %w", err)
	}
	return samples, outputConfig(rate), nil
}

func decodeMP3(data []byte) ([]int16, audioio.Config, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, audioio.Config{}, fmt.Errorf("playback: decode mp3: %w", err)
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, audioio.Config{}, fmt.Errorf("playback: decode mp3: %w", err)
	}

	// go-mp3 always emits 16-bit stereo.
	samples := audioio.StereoToMono(audioio.BytesToSamples(raw))
	return samples, outputConfig(decoder.SampleRate()), nil
}

func decodePCM(data []byte) ([]int16, audioio.Config, error) {
	if len(data) < 2 {
		return nil, audioio.Config{}, ErrNoAudio
	}
	return audioio.BytesToSamples(data), outputConfig(pcmSampleRate), nil
}

func outputConfig(sampleRate int) audioio.Config {
	cfg := audioio.DefaultConfig()
	cfg.SampleRate = sampleRate
	cfg.Channels = 1
	return cfg
}
