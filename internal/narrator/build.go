package narrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-narrator/internal/audio"
	"github.com/example/go-narrator/internal/config"
	"github.com/example/go-narrator/internal/onnx"
	"github.com/example/go-narrator/internal/playback"
	"github.com/example/go-narrator/internal/tokenizer"
	"github.com/example/go-narrator/internal/voice"
)

// FromConfig builds an engine backed by the ONNX model, the character
// tokenizer, the configured voice and the configured sink.
func FromConfig(cfg config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sink, err := playback.New(cfg.TTS.Sink, logger)
	if err != nil {
		return nil, err
	}

	all := append(ConfigOptions(cfg), WithLogger(logger))
	all = append(all, opts...)

	return New(sink, ConfigLoaders(cfg, logger), all...), nil
}

func ConfigLoaders(cfg config.Config, logger *slog.Logger) Loaders {
	if logger == nil {
		logger = slog.Default()
	}

	return Loaders{
		Model: func(_ context.Context) (Synthesizer, error) {
			info, err := onnx.DetectRuntime(cfg.Runtime)
			if err != nil {
				return nil, err
			}

			logger.Info("onnx runtime detected",
				slog.String("library", info.LibraryPath),
				slog.String("version", info.Version),
			)

			model, err := onnx.OpenModel(cfg.Paths.ModelPath, onnx.ModelOptions{
				Runner: onnx.RunnerConfig{
					LibraryPath: info.LibraryPath,
					APIVersion:  uint32(max(cfg.Runtime.ORTAPIVersion, 0)),
				},
				Names: onnx.IONames{
					InputIDs: cfg.Model.InputIDsName,
					Style:    cfg.Model.StyleName,
					Speed:    cfg.Model.SpeedName,
					Output:   cfg.Model.OutputName,
				},
				Logger: logger,
			})
			if err != nil {
				return nil, err
			}

			return model, nil
		},
		Tokenizer: func(_ context.Context) (tokenizer.Tokenizer, error) {
			tok, err := tokenizer.LoadCharTokenizer(cfg.Paths.VocabPath)
			if err != nil {
				return nil, err
			}

			return tok, nil
		},
		Style: func(_ context.Context) (StyleSource, error) {
			path, err := voice.Resolve(cfg.Paths.VoicesManifest, cfg.Paths.Voice, cfg.Paths.VoicePath)
			if err != nil {
				return nil, err
			}

			profile := voice.NewProfile(path)
			if _, err := profile.Style(); err != nil {
				return nil, fmt.Errorf("voice profile %s: %w", path, err)
			}

			return profile, nil
		},
	}
}

func ConfigOptions(cfg config.Config) []Option {
	var hooks []audio.Hook
	if cfg.TTS.Normalize {
		hooks = append(hooks, audio.Normalize())
	}

	if cfg.TTS.FadeMS > 0 {
		hooks = append(hooks, audio.Fade(cfg.TTS.FadeMS))
	}

	return []Option{
		WithSpeed(float32(cfg.TTS.Speed)),
		WithInferenceTimeout(time.Duration(cfg.TTS.InferenceTimeoutMS) * time.Millisecond),
		WithHooks(hooks...),
	}
}
