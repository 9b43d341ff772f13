package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/interviewer/internal/bank"
	"github.com/pavelanni/interviewer/internal/interview"
	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/llm/gemini"
	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/store"
	"github.com/pavelanni/interviewer/internal/telemetry"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "interviewer",
		Short:        "Adaptive mock interviews graded by an LLM",
		Version:      version,
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, practiceCmd(), exportCmd(), rolesCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Also write logs to this rotated file")
}

func addStoreFlags(f *pflag.FlagSet) {
	f.StringP("bank", "b", "questions.json", "Question bank file (JSON or YAML)")
	f.String("db", "interviewer.db", "SQLite database path")
}

func addJudgeFlags(f *pflag.FlagSet) {
	f.String("judge-backend", "openai", "Judge backend (openai, gemini)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for the OpenAI-compatible endpoint")
	f.String("llm-model", "llama3.2", "Judge model name")
	f.String("gemini-key", "", "Gemini API key (or set INTERVIEWER_GEMINI_KEY)")
	f.String("gemini-model", "", "Gemini model name (default gemini-2.5-flash)")
	f.Float32("temperature", 0.2, "Sampling temperature for judge calls")
	f.Bool("json-mode", true, "Request JSON responses from the OpenAI-compatible endpoint")
	f.String("prompt-variant", string(prompts.PromptStandard), "Evaluation prompt variant (strict, standard, lenient)")
	f.Duration("judge-timeout", 90*time.Second, "Deadline for a single judge call (0 = none)")
	f.Bool("skip-ping", false, "Do not check the judge endpoint at startup")
	f.String("telemetry-dir", "", "Write OpenTelemetry traces and metrics to files in this directory")
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if path := v.GetString("log-file"); path != "" {
		out = io.MultiWriter(os.Stderr, telemetry.RotatingFile(path))
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("INTERVIEWER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("interviewer")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/interviewer")
	v.AddConfigPath("/etc/interviewer")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// app is the wired set of components shared by serve and practice.
type app struct {
	bank    *bank.Bank
	store   *store.Store
	engine  *interview.Engine
	cleanup []func()
}

func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

func openBankAndStore(ctx context.Context, v *viper.Viper) (*bank.Bank, *store.Store, error) {
	b, err := bank.Load(v.GetString("bank"))
	if err != nil {
		return nil, nil, fmt.Errorf("load question bank: %w", err)
	}
	slog.Info("question bank loaded", "path", v.GetString("bank"), "roles", len(b.Roles()), "version", b.Version()[:12])

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	prev, err := db.RecordBankVersion(ctx, b.Version())
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("record bank version: %w", err)
	}
	if prev != "" && prev != b.Version() {
		slog.Warn("question bank changed since last run; indices of existing sessions refer to the old catalog",
			"previous", prev[:min(12, len(prev))], "current", b.Version()[:12])
	}
	return b, db, nil
}

func openApp(ctx context.Context, v *viper.Viper) (*app, error) {
	a := &app{}

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Dir:            v.GetString("telemetry-dir"),
		ServiceVersion: version,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.cleanup = append(a.cleanup, shutdown)

	a.bank, a.store, err = openBankAndStore(ctx, v)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cleanup = append(a.cleanup, func() { a.store.Close() })

	judge, err := newJudge(ctx, v)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine = interview.New(a.bank, a.store, judge)
	return a, nil
}

func newJudge(ctx context.Context, v *viper.Viper) (*llm.Judge, error) {
	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", variant)
		variant = string(prompts.PromptStandard)
	}
	temperature := float32(v.GetFloat64("temperature"))

	var completer llm.Completer
	switch backend := strings.ToLower(v.GetString("judge-backend")); backend {
	case "openai":
		c := llm.NewOpenAI(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"), temperature, v.GetBool("json-mode"))
		if !v.GetBool("skip-ping") {
			if err := c.Ping(ctx); err != nil {
				return nil, fmt.Errorf("LLM health check: %w", err)
			}
			slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", c.Model())
		}
		completer = c
	case "gemini":
		c, err := gemini.NewGenerator(ctx, v.GetString("gemini-key"), v.GetString("gemini-model"), temperature)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		completer = c
	default:
		return nil, fmt.Errorf("unknown judge backend %q", backend)
	}

	judge, err := llm.NewJudge(completer, variant, v.GetDuration("judge-timeout"))
	if err != nil {
		return nil, fmt.Errorf("create judge: %w", err)
	}
	slog.Info("judge ready", "backend", v.GetString("judge-backend"), "model", completer.Model(), "variant", variant)
	return judge, nil
}
