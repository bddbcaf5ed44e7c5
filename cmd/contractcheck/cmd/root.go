package cmd

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfenderov/contractcheck/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "contractcheck",
	Short: "Contract compliance checker",
	Long: `contractcheck reads a contract (PDF, DOCX, TXT, PNG or JPG), indexes its text,
and asks a language model for major risks, compliance issues and unfair terms.

Commands:
  serve    Start the upload form
  analyze  Analyze one contract from a file, URL or bucket object
  index    Build the persisted index for a contract
  search   Search the persisted index
  mcp      Start the MCP server`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfg.Validate()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	// .env first so GROQ_API_KEY and CONTRACTCHECK_* are visible below
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/contractcheck")
		viper.AddConfigPath(".")
	}

	// CONTRACTCHECK_LLM_MODEL -> llm.model
	viper.SetEnvPrefix("CONTRACTCHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for _, key := range []string{
		"server.addr",
		"server.work_dir",
		"llm.provider",
		"llm.base_url",
		"llm.socket_path",
		"llm.model",
		"llm.api_key_env",
		"llm.temperature",
		"llm.max_tokens",
		"embeddings.provider",
		"embeddings.base_url",
		"embeddings.socket_path",
		"embeddings.model",
		"embeddings.api_key_env",
		"index.backend",
		"index.path",
		"index.metric",
		"index.reuse_policy",
		"index.top_k",
		"elasticsearch.index",
		"elasticsearch.username",
		"elasticsearch.password",
		"storage.endpoint",
		"storage.bucket",
		"storage.access_key_id",
		"storage.secret_access_key",
		"extractor.tesseract_path",
		"extractor.language",
	} {
		viper.BindEnv(key, "CONTRACTCHECK_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Addresses come from env as a comma-separated string
	if addrs := os.Getenv("CONTRACTCHECK_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}
