package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DarthPollos/CV-Compare-Project/internal/ai"
	"github.com/DarthPollos/CV-Compare-Project/internal/embedding"
	"github.com/DarthPollos/CV-Compare-Project/internal/handoff"
	"github.com/DarthPollos/CV-Compare-Project/internal/index"
	"github.com/DarthPollos/CV-Compare-Project/internal/rerank"
	"github.com/DarthPollos/CV-Compare-Project/internal/retrieval"
	"github.com/DarthPollos/CV-Compare-Project/internal/store"
)

const (
	app       = "cv-compare"
	envPrefix = "CV_COMPARE"
)

// envReplacer maps rerank.max-candidates to CV_COMPARE_RERANK_MAX_CANDIDATES.
var envReplacer = strings.NewReplacer(".", "_", "-", "_")

type Config struct {
	Store       *StoreConfig     `mapstructure:"store" validate:"required"`
	Embedding   *EmbeddingConfig `mapstructure:"embedding" validate:"required"`
	Index       *IndexConfig     `mapstructure:"index" validate:"required"`
	Retrieval   *RetrievalConfig `mapstructure:"retrieval" validate:"required"`
	Rerank      *RerankConfig    `mapstructure:"rerank" validate:"required"`
	Handoff     *HandoffConfig   `mapstructure:"handoff" validate:"required"`
	ExcludeFile string           `mapstructure:"exclude-file"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `mapstructure:"dsn" json:"-"`
}

type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider" validate:"oneof=gemini openai local"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api-key" json:"-"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	BaseURL    string        `mapstructure:"base-url" validate:"omitempty,url"`
	BatchSize  int           `mapstructure:"batch-size" validate:"gte=1"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Dimension  int           `mapstructure:"dimension" validate:"gte=0"`
	Cache      *CacheConfig  `mapstructure:"cache" validate:"required"`
}

type CacheConfig struct {
	Size int           `mapstructure:"size" validate:"gte=0"`
	TTL  time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type IndexConfig struct {
	Path    string `mapstructure:"path" validate:"required"`
	Rebuild bool   `mapstructure:"rebuild"`
}

type RetrievalConfig struct {
	TopK        int     `mapstructure:"top-k" validate:"gte=1"`
	MaxDistance float64 `mapstructure:"max-distance" validate:"gte=0,lte=2"`
}

type RerankConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Provider        string        `mapstructure:"provider" validate:"oneof=gemini openai"`
	Model           string        `mapstructure:"model"`
	APIKey          string        `mapstructure:"api-key" json:"-"`
	APIKeyFile      string        `mapstructure:"api-key-file"`
	BaseURL         string        `mapstructure:"base-url" validate:"omitempty,url"`
	MaxCandidates   int           `mapstructure:"max-candidates" validate:"gte=1"`
	TopN            int           `mapstructure:"top-n" validate:"gte=1,ltefield=MaxCandidates"`
	Temperature     float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens int32         `mapstructure:"max-output-tokens" validate:"gte=1"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxRetries      int           `mapstructure:"max-retries" validate:"gte=0"`
	MaxLogLength    int           `mapstructure:"max-log-length" validate:"gte=0"`
	Instructions    string        `mapstructure:"instructions"`
}

type HandoffConfig struct {
	File string `mapstructure:"file" validate:"required"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-compare ranks stored résumés against a job description with embeddings and an LLM",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-compare.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.dsn", "cv_database.db")

	v.SetDefault("embedding.provider", "gemini")
	v.SetDefault("embedding.api-key", "")
	v.SetDefault("embedding.batch-size", index.DefaultBatchSize)
	v.SetDefault("embedding.timeout", embedding.DefaultTimeout)
	v.SetDefault("embedding.cache.size", embedding.DefaultCacheSize)
	v.SetDefault("embedding.cache.ttl", embedding.DefaultCacheTTL)

	v.SetDefault("index.path", "cv_index.gob")

	v.SetDefault("retrieval.top-k", retrieval.DefaultTopK)

	v.SetDefault("rerank.enabled", true)
	v.SetDefault("rerank.provider", "gemini")
	v.SetDefault("rerank.api-key", "")
	v.SetDefault("rerank.max-candidates", rerank.DefaultMaxCandidates)
	v.SetDefault("rerank.top-n", rerank.DefaultTopN)
	v.SetDefault("rerank.temperature", rerank.DefaultTemperature)
	v.SetDefault("rerank.max-output-tokens", rerank.DefaultMaxOutputTokens)
	v.SetDefault("rerank.timeout", rerank.DefaultTimeout)
	v.SetDefault("rerank.max-retries", ai.DefaultMaxRetries)
	v.SetDefault("rerank.max-log-length", 200)

	v.SetDefault("handoff.file", handoff.DefaultFile)
	v.SetDefault("exclude-file", "")
}

func initConfig() {
	// Missing .env is fine, the variables may come from the environment.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit config must exist, the default one is optional.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if config == nil {
		return nil, errors.New("config is required")
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(config); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return config, nil
}
