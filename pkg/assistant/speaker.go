package assistant

import (
	"context"

	"github.com/vinealabs/go-sommelier/pkg/playback"
	"github.com/vinealabs/go-sommelier/pkg/tts"
)

// Speaker renders utterances through the shared output device: it
// synthesizes the text with the configured provider and plays the result,
// blocking until playback finishes or ctx is canceled.
type Speaker struct {
	provider tts.Provider
	player   *playback.Manager
}

// NewSpeaker builds a speaker over the given provider and playback manager.
func NewSpeaker(provider tts.Provider, player *playback.Manager) *Speaker {
	return &Speaker{provider: provider, player: player}
}

// voiceSetter is implemented by providers that support switching voices.
type voiceSetter interface {
	SetVoice(id string) error
}

// Speak implements tts.Speaker.
func (s *Speaker) Speak(ctx context.Context, u tts.Utterance) error {
	if u.Voice != nil {
		if setter, ok := s.provider.(voiceSetter); ok {
			if err := setter.SetVoice(u.Voice.ID); err != nil {
				return err
			}
		}
	}

	result, err := s.provider.Synthesize(ctx, u.Text)
	if err != nil {
		return err
	}

	handle, err := s.player.Play(ctx, playback.Source{
		Data: result.Audio,
		MIME: encodingMIME(result.Format.Encoding),
	}, nil)
	if err != nil {
		return err
	}

	select {
	case <-handle.Done():
		return nil
	case <-ctx.Done():
		handle.Stop()
		return ctx.Err()
	}
}

func encodingMIME(enc tts.Encoding) string {
	if enc == tts.EncodingMP3 {
		return "audio/mpeg"
	}
	return ""
}
