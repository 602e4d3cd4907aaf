package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		// Driver selects the model catalog backend: "postgres" or "sqlite".
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Storage struct {
		DataDir       string `mapstructure:"data_dir"`
		UploadDir     string `mapstructure:"upload_dir"`
		ModelCacheDir string `mapstructure:"model_cache_dir"`
	} `mapstructure:"storage"`

	Models struct {
		DownloadAttempts int           `mapstructure:"download_attempts"`
		DownloadTimeout  time.Duration `mapstructure:"download_timeout"`
		DownloadBaseURL  string        `mapstructure:"download_base_url"`
		// RetryCooldown is the pause between full preparation cycles while
		// the service stays in a non-ready state.
		RetryCooldown time.Duration `mapstructure:"retry_cooldown"`
	} `mapstructure:"models"`

	Queue struct {
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"queue"`

	Sampler struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"sampler"`

	Callback struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"callback"`

	Whisper struct {
		DefaultLanguage  string  `mapstructure:"default_language"`
		Temperature      float64 `mapstructure:"temperature"`
		LogprobThreshold float64 `mapstructure:"logprob_threshold"`
		Bin              string  `mapstructure:"bin"`
		FFmpeg           string  `mapstructure:"ffmpeg"`
	} `mapstructure:"whisper"`

	Transcriber struct {
		// Backend selects the inference collaborator: "local" (whisper CLI
		// on the node's GPUs) or "openai" (hosted API).
		Backend      string `mapstructure:"backend"`
		OpenAIAPIKey string `mapstructure:"openai_api_key"`
	} `mapstructure:"transcriber"`

	Dashboard struct {
		RefreshMS int `mapstructure:"refresh_ms"`
	} `mapstructure:"dashboard"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("server.addr", "0.0.0.0")
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("storage.data_dir", "data")
	viper.SetDefault("storage.upload_dir", "data/uploads")
	viper.SetDefault("storage.model_cache_dir", "data/whisper_models")
	viper.SetDefault("models.download_attempts", 3)
	viper.SetDefault("models.download_timeout", 5*time.Minute)
	viper.SetDefault("models.download_base_url", "https://huggingface.co/ggerganov/whisper.cpp/resolve/main")
	viper.SetDefault("models.retry_cooldown", 60*time.Second)
	viper.SetDefault("queue.capacity", 1024)
	viper.SetDefault("sampler.interval", 500*time.Millisecond)
	viper.SetDefault("callback.timeout", 30*time.Second)
	viper.SetDefault("whisper.default_language", "Russian")
	viper.SetDefault("whisper.temperature", 0.0)
	viper.SetDefault("whisper.logprob_threshold", -1.0)
	viper.SetDefault("whisper.bin", "whisper-cli")
	viper.SetDefault("whisper.ffmpeg", "ffmpeg")
	viper.SetDefault("transcriber.backend", "local")
	viper.SetDefault("dashboard.refresh_ms", 2000)

	viper.SetEnvPrefix("WHISPERD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// The hosted backend key is conventionally set without a prefix.
	viper.BindEnv("transcriber.openai_api_key", "OPENAI_API_KEY")

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env vars carry the rest.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
