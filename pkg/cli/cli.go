// Package cli builds the endpointstore command tree: store operations against
// a configured endpoints service, the local sandbox and configuration tools.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nimburion/endpointstore/pkg/config"
	"github.com/nimburion/endpointstore/pkg/observability/logger"
	"github.com/nimburion/endpointstore/pkg/observability/tracing"
	"github.com/nimburion/endpointstore/pkg/version"
)

// Options configures the root command.
type Options struct {
	Name        string
	Description string
	// EnvPrefix prefixes environment overrides. Defaults to ENDPOINTSTORE.
	EnvPrefix string
	// ConfigPath is the default of --config-file.
	ConfigPath string
	// LogOutput receives log entries. Defaults to stderr.
	LogOutput io.Writer
}

// app carries the state shared by every subcommand of one invocation.
type app struct {
	opts       Options
	cfgPath    string
	secretFile string
}

// NewRootCommand returns the endpointstore command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "endpointstore"
	}
	if opts.Description == "" {
		opts.Description = "Object store over a remote endpoints API"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	flags.StringVar(&a.secretFile, "secret-file", "", "path to secrets file (sets "+strings.ToUpper(opts.EnvPrefix)+"_SECRETS_FILE)")
	flags.String("transport", "", "endpoints transport: memory, rest or grpc")
	flags.String("url", "", "base URL of the REST endpoints service")
	flags.String("resource", "", "name of the remote collection")
	flags.String("id-property", "", "record field holding the identity")
	flags.Duration("timeout", 0, "maximum time to wait for a remote call")
	flags.String("backend", "", "in-process backend of the memory transport and the sandbox: memory, redis or bolt")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: json or text")

	root.AddCommand(
		a.getCommand(),
		a.putCommand(),
		a.addCommand(),
		a.removeCommand(),
		a.queryCommand(),
		a.sandboxCommand(),
		a.configCommand(),
		a.versionCommand(),
	)
	return root
}

// Execute runs cmd and exits with status 1 on failure.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// LoadConfigAndLogger loads the configuration with precedence flags > env >
// secrets file > config file > defaults and builds the zap logger it names.
func LoadConfigAndLogger(cfgPath, envPrefix, secretFilePath string, flags *pflag.FlagSet, logOutput io.Writer) (*config.Config, logger.Logger, error) {
	if err := applySecretFileFlag(envPrefix, secretFilePath); err != nil {
		return nil, nil, err
	}
	cfg, err := config.NewViperLoader(cfgPath, envPrefix).WithFlags(flags).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level, err := logger.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	format, err := logger.ParseLogFormat(cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewZapLogger(logger.Config{Level: level, Format: format, Output: logOutput})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	if level == logger.DebugLevel {
		log.Debug("effective configuration", "config", fmt.Sprintf("%+v", cfg.Redacted()))
	}
	return cfg, log, nil
}

func (a *app) load(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
	return LoadConfigAndLogger(a.cfgPath, a.opts.EnvPrefix, a.secretFile, cmd.Flags(), a.opts.LogOutput)
}

// startTracing installs the OTLP tracer provider when tracing is enabled. The
// returned function flushes it.
func startTracing(ctx context.Context, cfg *config.Config, log logger.Logger) (func(), error) {
	if !cfg.Observability.TracingEnabled {
		return func() {}, nil
	}
	tp, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: version.Current(cfg.Service.Name).Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("create tracer provider: %w", err)
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}, nil
}

func applySecretFileFlag(envPrefix, secretFilePath string) error {
	if secretFilePath == "" {
		return nil
	}
	info, err := os.Stat(secretFilePath)
	if err != nil {
		return fmt.Errorf("secret file %s is not accessible: %w", secretFilePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("secret file %s must not be a directory", secretFilePath)
	}
	prefix := strings.ToUpper(strings.TrimSpace(envPrefix))
	if prefix == "" {
		prefix = config.DefaultEnvPrefix
	}
	return os.Setenv(prefix+"_SECRETS_FILE", filepath.Clean(secretFilePath))
}
