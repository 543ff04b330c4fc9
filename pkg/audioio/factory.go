package audioio

import (
	"fmt"
	"log/slog"
	"runtime"
)

// NewSource creates an audio source for the configured backend.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend()
	}

	switch backend {
	case BackendMalgo:
		return NewMalgoSource(cfg, logger)
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("audioio: unknown backend %q", backend)
	}
}

// NewSink creates an audio sink for the configured backend.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend()
	}

	switch backend {
	case BackendMalgo:
		return NewMalgoSink(cfg, logger)
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	default:
		return nil, fmt.Errorf("audioio: unknown backend %q", backend)
	}
}

func detectBestBackend() Backend {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		return BackendMalgo
	default:
		return BackendMock
	}
}
