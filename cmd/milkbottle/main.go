// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the milkbottle CLI. Each bottle is a
// subcommand; pdfmilker turns scientific PDFs into structured Markdown.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/milkbottle/internal/history"
	"github.com/pdiddy/milkbottle/internal/secrets"
	"github.com/pdiddy/milkbottle/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	secretsDir       = ".secrets/"
	defaultUserAgent = "milkbottle/0.1"
)

var (
	// logger is built in initConfig from --verbose.
	logger = zap.NewNop()

	// loadedSecrets holds credentials loaded from .secrets/ at startup.
	loadedSecrets map[string]string
)

// rootCmd is the base command for the milkbottle CLI.
var rootCmd = &cobra.Command{
	Use:   "milkbottle",
	Short: "A toolbox of bottles for milking documents",
	Long: `milkbottle is a CLI toolbox built from bottles. The pdfmilker bottle
extracts structured Markdown from scientific PDFs, locally or by delegating
to Grobid or Mathpix, and scores the quality of every conversion.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(secretsDir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./milkbottle.yaml or ~/.config/milkbottle/milkbottle.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

func initConfig() {
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	logger = newLogger(verbose)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("could not load .env", zap.Error(err))
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("milkbottle")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "milkbottle"))
		}
	}

	setDefaults()
	viper.SetEnvPrefix("MILKBOTTLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Debug("using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}

func setDefaults() {
	viper.SetDefault("pdfmilker.output_dir", "milked")
	viper.SetDefault("pdfmilker.backend", string(types.BackendAuto))
	viper.SetDefault("pdfmilker.fallback", []string{string(types.BackendGrobid), string(types.BackendLocal)})
	viper.SetDefault("pdfmilker.workers", min(runtime.NumCPU(), 4))
	viper.SetDefault("pdfmilker.min_quality", 0.5)
	viper.SetDefault("pdfmilker.overwrite", false)
	viper.SetDefault("pdfmilker.write_json", false)
	viper.SetDefault("pdfmilker.math_mode", string(types.MathLaTeX))
	viper.SetDefault("pdfmilker.pdftotext_bin", "pdftotext")

	viper.SetDefault("pdfmilker.grobid.url", "http://localhost:8070")
	viper.SetDefault("pdfmilker.grobid.timeout", 120*time.Second)
	viper.SetDefault("pdfmilker.grobid.user_agent", defaultUserAgent)
	viper.SetDefault("pdfmilker.grobid.max_retries", 3)
	viper.SetDefault("pdfmilker.grobid.consolidate_header", true)
	viper.SetDefault("pdfmilker.grobid.image", "lfoppiano/grobid:0.8.1")

	viper.SetDefault("pdfmilker.mathpix.url", "https://api.mathpix.com")
	viper.SetDefault("pdfmilker.mathpix.timeout", 60*time.Second)
	viper.SetDefault("pdfmilker.mathpix.user_agent", defaultUserAgent)
	viper.SetDefault("pdfmilker.mathpix.app_id", "")
	viper.SetDefault("pdfmilker.mathpix.app_key", "")
	viper.SetDefault("pdfmilker.mathpix.poll_interval", 2*time.Second)
	viper.SetDefault("pdfmilker.mathpix.max_wait", 5*time.Minute)

	viper.SetDefault("pdfmilker.history.path", "")
	viper.SetDefault("pdfmilker.history.disabled", false)
}

// newLogger builds a console logger on stderr.
func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not build logger: %v\n", err)
		return zap.NewNop()
	}
	return l
}

// settings mirrors the config file layout.
type settings struct {
	PDFMilker types.PDFMilkerConfig `mapstructure:"pdfmilker"`
}

// bindFlags binds cmd's flags to viper keys so flags override env and file
// values. It runs inside the command being executed, since sibling commands
// share keys.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// loadConfig decodes the pdfmilker settings and fills credentials from
// .secrets/ where the config leaves them empty.
func loadConfig() (types.PDFMilkerConfig, error) {
	var s settings
	if err := viper.Unmarshal(&s); err != nil {
		return types.PDFMilkerConfig{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg := s.PDFMilker
	cfg.Mathpix.AppID = secrets.Resolve(loadedSecrets, secrets.MathpixAppID, cfg.Mathpix.AppID)
	cfg.Mathpix.AppKey = secrets.Resolve(loadedSecrets, secrets.MathpixAppKey, cfg.Mathpix.AppKey)
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.OutputDir, history.DBFile)
	}

	switch cfg.MathMode {
	case types.MathLaTeX, types.MathUnicode:
	default:
		return cfg, fmt.Errorf("unsupported math mode %q: use latex or unicode", cfg.MathMode)
	}
	if cfg.MinQuality < 0 || cfg.MinQuality > 1 {
		return cfg, fmt.Errorf("min quality %.2f out of range [0, 1]", cfg.MinQuality)
	}
	return cfg, nil
}

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
