package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"dune-sync/internal/config"
	"dune-sync/internal/definition"
	"dune-sync/internal/domain"
	"dune-sync/internal/dune"
	"dune-sync/internal/execution"
	"dune-sync/internal/reconcile"
)

var (
	version = "dev"
	commit  = "none"
)

// Process exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// usageError marks invalid invocations: bad flags, missing or malformed
// arguments. These exit with exitUsage.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// noArgs rejects positional arguments as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &usageError{msg: err.Error()}
	}
	return nil
}

// reportedError is returned after a command already wrote its own failure
// report; Execute exits non-zero without printing anything else.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// Execute runs the CLI.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd, a := newRoot()
	defer a.close()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var reported *reportedError
	if errors.As(err, &reported) {
		return exitError
	}
	output, _ := rootCmd.PersistentFlags().GetString("output")
	if output == "json" {
		errObj := map[string]interface{}{
			"error": err.Error(),
		}
		var apiErr *dune.APIError
		if errors.As(err, &apiErr) {
			errObj["http_status"] = apiErr.HTTPStatus
			errObj["code"] = apiErr.Code
		}
		_ = printJSON(stdout, errObj)
	} else {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	}

	var usage *usageError
	if errors.As(err, &usage) {
		return exitUsage
	}
	return exitError
}

// app carries the configuration resolved for one invocation and builds the
// components commands need from it.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer

	newService func(cfg *config.Config, logger *slog.Logger) (domain.QueryService, error)
}

func (a *app) close() {
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

// service returns the remote query service, failing fast without a credential.
func (a *app) service() (domain.QueryService, error) {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	return a.newService(a.cfg, a.logger)
}

func (a *app) reconciler(svc domain.QueryService) *reconcile.Reconciler {
	scanner := definition.NewScanner(a.cfg.QueriesDir, a.logger)
	return reconcile.New(svc, scanner, a.cfg.ManifestPath, a.logger)
}

func (a *app) driver(svc domain.QueryService) *execution.Driver {
	return execution.NewDriver(svc, execution.Options{
		PollInterval: a.cfg.PollInterval,
		MaxWait:      a.cfg.PollTimeout,
		Logger:       a.logger,
	})
}

func newDuneService(cfg *config.Config, logger *slog.Logger) (domain.QueryService, error) {
	return dune.NewClient(cfg.Host, cfg.APIKey, dune.ClientOptions{
		Timeout:        cfg.HTTPTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         logger,
	})
}

func newRootCmd() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

func newRoot() (*cobra.Command, *app) {
	var (
		host         string
		apiKey       string
		output       string
		profile      string
		envFile      string
		queriesDir   string
		manifestPath string
		pollInterval time.Duration
		timeout      time.Duration
		logLevel     string
		logFormat    string
		logFile      string
	)

	a := &app{newService: newDuneService}

	rootCmd := &cobra.Command{
		Use:           "dunesync",
		Short:         "Sync local SQL files with Dune queries",
		Long:          "Create, update and run Dune queries from a directory of .sql files tracked by a YAML manifest.",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				if err := config.LoadDotEnv(envFile); err != nil {
					return err
				}
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}

			// Config file is optional
			userCfg, err := LoadUserConfig()
			if err != nil {
				userCfg = defaultUserConfig()
			}
			p, err := userCfg.ActiveProfile(profile)
			if err != nil {
				return err
			}

			// Apply precedence: flag > env > profile > default
			applyProfile(cfg, p)
			if !cmd.Flags().Changed("output") && p.Output != "" {
				output = p.Output
			}
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Host = host
			}
			if flags.Changed("api-key") {
				cfg.APIKey = apiKey
			}
			if flags.Changed("queries-dir") {
				cfg.QueriesDir = queriesDir
			}
			if flags.Changed("manifest") {
				cfg.ManifestPath = manifestPath
			}
			if flags.Changed("poll-interval") {
				cfg.PollInterval = pollInterval
			}
			if flags.Changed("timeout") {
				cfg.PollTimeout = timeout
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = strings.ToLower(logFormat)
			}
			if flags.Changed("log-file") {
				cfg.LogFile = logFile
			}

			if err := validateOutputFormat(output); err != nil {
				return &usageError{msg: err.Error()}
			}
			if err := validateHostURL(cfg.Host); err != nil {
				return err
			}
			if cfg.PollInterval <= 0 {
				return usageErrorf("--poll-interval must be positive")
			}
			if cfg.PollTimeout < 0 {
				return usageErrorf("--timeout must not be negative")
			}
			switch cfg.LogFormat {
			case "", "text", "json":
			default:
				return usageErrorf("unsupported log format %q: use 'text' or 'json'", cfg.LogFormat)
			}

			a.close()
			a.logger, a.closer = newLogger(cmd.ErrOrStderr(), cfg.SlogLevel(), cfg.LogFormat, cfg.LogFile)
			for _, w := range cfg.Warnings {
				a.logger.Warn(w)
			}
			a.cfg = cfg
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&host, "host", config.DefaultHost, "API host URL (env DUNE_API_URL)")
	pf.StringVar(&apiKey, "api-key", "", "API key (env DUNE_API_KEY)")
	pf.StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	pf.StringVarP(&profile, "profile", "p", "", "Config profile to use")
	pf.StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	pf.StringVar(&queriesDir, "queries-dir", config.DefaultQueriesDir, "Directory holding .sql files (env DUNE_QUERIES_DIR)")
	pf.StringVar(&manifestPath, "manifest", config.DefaultManifestPath, "Manifest listing managed query ids (env DUNE_MANIFEST)")
	pf.DurationVar(&pollInterval, "poll-interval", config.DefaultPollInterval, "Delay between execution status checks")
	pf.DurationVar(&timeout, "timeout", 0, "Max wait per execution; 0 waits indefinitely")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "Log format (text, json); default depends on the terminal")
	pf.StringVar(&logFile, "log-file", "", "Write logs to a rotating file instead of stderr")

	// --query_id and --query-id are the same flag.
	rootCmd.SetGlobalNormalizationFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageErrorf("%v\nUsage: %s", err, cmd.UseLine())
	})

	rootCmd.AddCommand(newCreateCmd(a))
	rootCmd.AddCommand(newDeployCmd(a))
	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd, a
}

// applyProfile fills settings the environment left unset from the profile.
func applyProfile(cfg *config.Config, p Profile) {
	if os.Getenv("DUNE_API_URL") == "" && p.Host != "" {
		cfg.Host = p.Host
	}
	if os.Getenv("DUNE_API_KEY") == "" && p.APIKey != "" {
		cfg.APIKey = p.APIKey
	}
	if os.Getenv("DUNE_QUERIES_DIR") == "" && p.QueriesDir != "" {
		cfg.QueriesDir = p.QueriesDir
	}
	if os.Getenv("DUNE_MANIFEST") == "" && p.Manifest != "" {
		cfg.ManifestPath = p.Manifest
	}
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return usageErrorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
