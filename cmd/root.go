package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/mentormatch/internal/feedback"
	"github.com/spigell/mentormatch/internal/logger"
	"github.com/spigell/mentormatch/internal/sentiment"
)

const (
	app       = "mentormatch"
	envPrefix = "MENTORMATCH"
)

type Config struct {
	Server    *ServerConfig    `mapstructure:"server"`
	Models    *ModelsConfig    `mapstructure:"models"`
	Ranking   *RankingConfig   `mapstructure:"ranking"`
	Feedback  *FeedbackConfig  `mapstructure:"feedback"`
	Sentiment *SentimentConfig `mapstructure:"sentiment"`
}

type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ReadTimeout     time.Duration `mapstructure:"read-timeout"`
	WriteTimeout    time.Duration `mapstructure:"write-timeout"`
	ScoringTimeout  time.Duration `mapstructure:"scoring-timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

type ModelsConfig struct {
	Similarity *SimilarityModelConfig `mapstructure:"similarity"`
	Scoring    *ScoringModelConfig    `mapstructure:"scoring"`
}

type SimilarityModelConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

type ScoringModelConfig struct {
	Path string `mapstructure:"path"`
}

type RankingConfig struct {
	MinimumScore   int      `mapstructure:"minimum-score"`
	MaxResults     int      `mapstructure:"max-results"`
	ExcludeMentors []string `mapstructure:"exclude-mentors"`
}

type FeedbackConfig struct {
	Backend string            `mapstructure:"backend"`
	Redis   *RedisConfig      `mapstructure:"redis"`
	Events  map[string]string `mapstructure:"events"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	DB           int    `mapstructure:"db"`
	Key          string `mapstructure:"key"`
	Password     string `mapstructure:"password" json:"-"`
	PasswordFile string `mapstructure:"password-file"`
}

type SentimentConfig struct {
	MinLength int              `mapstructure:"min-length"`
	Overrides []sentiment.Rule `mapstructure:"overrides"`
	AI        *AIConfig        `mapstructure:"ai"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "mentormatch ranks mentors for a student and collects event feedback",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("sentiment.ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is mentormatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":5000")
	v.SetDefault("server.read-timeout", 30*time.Second)
	v.SetDefault("server.write-timeout", 60*time.Second)
	v.SetDefault("server.scoring-timeout", 10*time.Second)
	v.SetDefault("server.shutdown-timeout", 15*time.Second)

	v.SetDefault("models.similarity.path", "src/trained_word2vec.txt")
	v.SetDefault("models.similarity.format", "auto")
	v.SetDefault("models.scoring.path", "src/ml_model.json")

	v.SetDefault("ranking.minimum-score", 0)
	v.SetDefault("ranking.max-results", 0)
	v.SetDefault("ranking.exclude-mentors", []string{})

	v.SetDefault("feedback.backend", "memory")
	v.SetDefault("feedback.redis.addr", "localhost:6379")
	v.SetDefault("feedback.redis.db", 0)
	v.SetDefault("feedback.redis.key", "mentormatch:feedback")
	v.SetDefault("feedback.redis.password", "")
	v.SetDefault("feedback.redis.password-file", "")
	v.SetDefault("feedback.events", feedback.DefaultEvents)

	v.SetDefault("sentiment.min-length", sentiment.DefaultMinLength)
	v.SetDefault("sentiment.overrides", sentiment.DefaultOverrides)
	v.SetDefault("sentiment.ai.enabled", false)
	v.SetDefault("sentiment.ai.provider", "gemini")
	v.SetDefault("sentiment.ai.gemini.api-key", "")
	v.SetDefault("sentiment.ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("sentiment.ai.gemini.max-retries", 2)
	v.SetDefault("sentiment.ai.gemini.max-log-length", 200)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The service runs on defaults when there is no config file, but a broken
	// one is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}
	if config == nil {
		return nil, errors.New("empty configuration")
	}

	return config, nil
}

// newLogger builds the command logger. Commands writing results to stdout pass
// "stderr" as output.
func newLogger(output string) *zap.Logger {
	l, err := logger.New(logger.Options{
		JSON:   viper.GetBool("json"),
		Debug:  viper.GetBool("debug"),
		Output: output,
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func (c *Config) similarity() *SimilarityModelConfig {
	if c.Models == nil || c.Models.Similarity == nil {
		return &SimilarityModelConfig{}
	}
	return c.Models.Similarity
}

func (c *Config) scoring() *ScoringModelConfig {
	if c.Models == nil || c.Models.Scoring == nil {
		return &ScoringModelConfig{}
	}
	return c.Models.Scoring
}

func (c *Config) validate() error {
	if c.Server == nil {
		return fmt.Errorf("server section is required")
	}
	if c.Feedback == nil {
		return fmt.Errorf("feedback section is required")
	}
	return nil
}
