package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full narrator configuration.
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Model     ModelConfig     `mapstructure:"model"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Server    ServerConfig    `mapstructure:"server"`
	Bus       BusConfig       `mapstructure:"bus"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	LogLevel  string          `mapstructure:"log_level"`
}

type PathsConfig struct {
	ModelPath      string `mapstructure:"model_path"`
	VocabPath      string `mapstructure:"vocab_path"`
	VoicePath      string `mapstructure:"voice_path"`
	VoicesManifest string `mapstructure:"voices_manifest"`
	Voice          string `mapstructure:"voice"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTAPIVersion  int    `mapstructure:"ort_api_version"`
	ORTVersion     string `mapstructure:"ort_version"`
}

// ModelConfig names the graph inputs and output of the acoustic model.
// An empty OutputName selects the sole (or lexically first) output.
type ModelConfig struct {
	InputIDsName string `mapstructure:"input_ids_name"`
	StyleName    string `mapstructure:"style_name"`
	SpeedName    string `mapstructure:"speed_name"`
	OutputName   string `mapstructure:"output_name"`
}

// TTSConfig controls synthesis and playback.
type TTSConfig struct {
	Speed              float64 `mapstructure:"speed"`
	InferenceTimeoutMS int     `mapstructure:"inference_timeout_ms"`
	Sink               string  `mapstructure:"sink"`
	FadeMS             float64 `mapstructure:"fade_ms"`
	Normalize          bool    `mapstructure:"normalize"`
}

// ServerConfig controls the HTTP surface. Timeouts are in seconds.
type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	Workers         int    `mapstructure:"workers"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

// BusConfig controls the NATS surface.
type BusConfig struct {
	Servers          []string `mapstructure:"servers"`
	Subject          string   `mapstructure:"subject"`
	Queue            string   `mapstructure:"queue"`
	ConnectTimeoutMS int      `mapstructure:"connect_timeout_ms"`
	EventsSubject    string   `mapstructure:"events_subject"`
	Embedded         bool     `mapstructure:"embedded"`
	Port             int      `mapstructure:"port"`
}

// TelemetryConfig selects the trace exporter. Metrics are always exported
// for Prometheus; traces go to OTLP when an endpoint is set, otherwise to
// stderr when TraceStdout is set, otherwise nowhere.
type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	TraceStdout  bool   `mapstructure:"trace_stdout"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			ModelPath:      "models/model_q8f16.onnx",
			VocabPath:      "models/tokenizer.json",
			VoicePath:      "models/am_michael.bin",
			VoicesManifest: "voices/manifest.json",
			Voice:          "",
		},
		Runtime: RuntimeConfig{
			ORTLibraryPath: "",
			ORTAPIVersion:  23,
			ORTVersion:     "",
		},
		Model: ModelConfig{
			InputIDsName: "input_ids",
			StyleName:    "style",
			SpeedName:    "speed",
			OutputName:   "",
		},
		TTS: TTSConfig{
			Speed:              1.0,
			InferenceTimeoutMS: 0,
			Sink:               SinkMalgo,
			FadeMS:             5,
			Normalize:          false,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			MaxTextBytes:    4096,
			Workers:         1,
			RequestTimeout:  60,
			ShutdownTimeout: 30,
		},
		Bus: BusConfig{
			Servers:          []string{"nats://127.0.0.1:4222"},
			Subject:          "narrator.speak",
			Queue:            "narrator",
			ConnectTimeoutMS: 2000,
			EventsSubject:    "narrator.events",
			Embedded:         false,
			Port:             4222,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "narrator",
			OTLPEndpoint: "",
			OTLPInsecure: false,
			TraceStdout:  false,
		},
		LogLevel: "info",
	}
}

// flagKeys maps each CLI flag to the config key it overrides.
var flagKeys = []struct {
	flag string
	key  string
}{
	{"model", "paths.model_path"},
	{"vocab", "paths.vocab_path"},
	{"voice-path", "paths.voice_path"},
	{"voices-manifest", "paths.voices_manifest"},
	{"voice", "paths.voice"},
	{"ort-lib", "runtime.ort_library_path"},
	{"ort-api-version", "runtime.ort_api_version"},
	{"ort-version", "runtime.ort_version"},
	{"input-ids-name", "model.input_ids_name"},
	{"style-name", "model.style_name"},
	{"speed-name", "model.speed_name"},
	{"output-name", "model.output_name"},
	{"speed", "tts.speed"},
	{"inference-timeout-ms", "tts.inference_timeout_ms"},
	{"sink", "tts.sink"},
	{"fade-ms", "tts.fade_ms"},
	{"normalize", "tts.normalize"},
	{"listen-addr", "server.listen_addr"},
	{"max-text-bytes", "server.max_text_bytes"},
	{"workers", "server.workers"},
	{"request-timeout", "server.request_timeout"},
	{"shutdown-timeout", "server.shutdown_timeout"},
	{"nats-servers", "bus.servers"},
	{"nats-subject", "bus.subject"},
	{"nats-queue", "bus.queue"},
	{"nats-connect-timeout-ms", "bus.connect_timeout_ms"},
	{"nats-events-subject", "bus.events_subject"},
	{"nats-embedded", "bus.embedded"},
	{"nats-port", "bus.port"},
	{"service-name", "telemetry.service_name"},
	{"otlp-endpoint", "telemetry.otlp_endpoint"},
	{"otlp-insecure", "telemetry.otlp_insecure"},
	{"trace-stdout", "telemetry.trace_stdout"},
	{"log-level", "log_level"},
}

// RegisterFlags adds a flag for every bindable key to fs.
func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("model", defaults.Paths.ModelPath, "Path to the ONNX acoustic model")
	fs.String("vocab", defaults.Paths.VocabPath, "Path to tokenizer.json vocabulary")
	fs.String("voice-path", defaults.Paths.VoicePath, "Path to voice profile (.bin, little-endian float32)")
	fs.String("voices-manifest", defaults.Paths.VoicesManifest, "Path to voices manifest.json")
	fs.String("voice", defaults.Paths.Voice, "Voice ID from the voices manifest (overrides --voice-path)")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.Int("ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version")
	fs.String("ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.String("input-ids-name", defaults.Model.InputIDsName, "Model input name for token IDs")
	fs.String("style-name", defaults.Model.StyleName, "Model input name for the style embedding")
	fs.String("speed-name", defaults.Model.SpeedName, "Model input name for the speed scalar")
	fs.String("output-name", defaults.Model.OutputName, "Model output name for the waveform (empty = first output)")
	fs.Float64("speed", defaults.TTS.Speed, "Speech speed passed to the model")
	fs.Int("inference-timeout-ms", defaults.TTS.InferenceTimeoutMS, "Per-utterance inference timeout in milliseconds (0 = none)")
	fs.String("sink", defaults.TTS.Sink, "Audio output sink (malgo|null)")
	fs.Float64("fade-ms", defaults.TTS.FadeMS, "Fade-in/out applied before playback in milliseconds")
	fs.Bool("normalize", defaults.TTS.Normalize, "Remove DC offset and peak-normalize synthesized audio")
	fs.String("listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Maximum text size accepted by the HTTP API")
	fs.Int("workers", defaults.Server.Workers, "Maximum concurrent /synth renders (0 = unlimited)")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "HTTP synthesis request timeout in seconds")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.StringSlice("nats-servers", defaults.Bus.Servers, "NATS server URLs")
	fs.String("nats-subject", defaults.Bus.Subject, "NATS subject carrying narration requests")
	fs.String("nats-queue", defaults.Bus.Queue, "NATS queue group (empty = plain subscription)")
	fs.Int("nats-connect-timeout-ms", defaults.Bus.ConnectTimeoutMS, "NATS connect timeout in milliseconds")
	fs.String("nats-events-subject", defaults.Bus.EventsSubject, "NATS subject for narration events (empty = none)")
	fs.Bool("nats-embedded", defaults.Bus.Embedded, "Run an embedded NATS server")
	fs.Int("nats-port", defaults.Bus.Port, "Client port of the embedded NATS server")
	fs.String("service-name", defaults.Telemetry.ServiceName, "Service name reported in telemetry")
	fs.String("otlp-endpoint", defaults.Telemetry.OTLPEndpoint, "OTLP gRPC endpoint for traces (host:port)")
	fs.Bool("otlp-insecure", defaults.Telemetry.OTLPInsecure, "Disable TLS for the OTLP exporter")
	fs.Bool("trace-stdout", defaults.Telemetry.TraceStdout, "Write traces to stderr when no OTLP endpoint is set")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

// Load merges defaults, the config file, NARRATOR_ environment variables and
// flags, in increasing precedence.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("NARRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	if err := v.BindEnv("runtime.ort_library_path", "NARRATOR_RUNTIME_ORT_LIBRARY_PATH", "NARRATOR_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("narrator")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Validate reports configuration values the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Paths.ModelPath == "" {
		errs = append(errs, errors.New("paths.model_path is required"))
	}
	if c.Paths.VocabPath == "" {
		errs = append(errs, errors.New("paths.vocab_path is required"))
	}
	if c.Paths.VoicePath == "" && c.Paths.Voice == "" {
		errs = append(errs, errors.New("paths.voice_path or paths.voice is required"))
	}
	if c.TTS.Speed <= 0 {
		errs = append(errs, fmt.Errorf("tts.speed must be > 0, got %v", c.TTS.Speed))
	}
	if c.TTS.InferenceTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("tts.inference_timeout_ms must be >= 0, got %d", c.TTS.InferenceTimeoutMS))
	}
	if c.TTS.FadeMS < 0 {
		errs = append(errs, fmt.Errorf("tts.fade_ms must be >= 0, got %v", c.TTS.FadeMS))
	}
	if _, err := NormalizeSink(c.TTS.Sink); err != nil {
		errs = append(errs, err)
	}
	if c.Server.MaxTextBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_text_bytes must be > 0, got %d", c.Server.MaxTextBytes))
	}
	if c.Server.Workers < 0 {
		errs = append(errs, fmt.Errorf("server.workers must be >= 0, got %d", c.Server.Workers))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout must be > 0, got %d", c.Server.RequestTimeout))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be >= 0, got %d", c.Server.ShutdownTimeout))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", fk.flag, err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.model_path", c.Paths.ModelPath)
	v.SetDefault("paths.vocab_path", c.Paths.VocabPath)
	v.SetDefault("paths.voice_path", c.Paths.VoicePath)
	v.SetDefault("paths.voices_manifest", c.Paths.VoicesManifest)
	v.SetDefault("paths.voice", c.Paths.Voice)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("model.input_ids_name", c.Model.InputIDsName)
	v.SetDefault("model.style_name", c.Model.StyleName)
	v.SetDefault("model.speed_name", c.Model.SpeedName)
	v.SetDefault("model.output_name", c.Model.OutputName)
	v.SetDefault("tts.speed", c.TTS.Speed)
	v.SetDefault("tts.inference_timeout_ms", c.TTS.InferenceTimeoutMS)
	v.SetDefault("tts.sink", c.TTS.Sink)
	v.SetDefault("tts.fade_ms", c.TTS.FadeMS)
	v.SetDefault("tts.normalize", c.TTS.Normalize)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("bus.servers", c.Bus.Servers)
	v.SetDefault("bus.subject", c.Bus.Subject)
	v.SetDefault("bus.queue", c.Bus.Queue)
	v.SetDefault("bus.connect_timeout_ms", c.Bus.ConnectTimeoutMS)
	v.SetDefault("bus.events_subject", c.Bus.EventsSubject)
	v.SetDefault("bus.embedded", c.Bus.Embedded)
	v.SetDefault("bus.port", c.Bus.Port)
	v.SetDefault("telemetry.service_name", c.Telemetry.ServiceName)
	v.SetDefault("telemetry.otlp_endpoint", c.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.otlp_insecure", c.Telemetry.OTLPInsecure)
	v.SetDefault("telemetry.trace_stdout", c.Telemetry.TraceStdout)
	v.SetDefault("log_level", c.LogLevel)
}
