package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poiesic/askq"
	"github.com/poiesic/askq/ai"
	"github.com/poiesic/askq/core"
	"github.com/poiesic/askq/credential"
	"github.com/poiesic/askq/dispatch"
	"github.com/poiesic/askq/transport/httpapi"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the question dispatcher and its REST API",
		Action: serveCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Listen address",
				Value:   ":5000",
				EnvVars: []string{"ASKQ_ADDR"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Number of worker threads",
				Value:   dispatch.DefaultPoolSize,
				EnvVars: []string{"NUM_WORKER_THREADS"},
			},
			&cli.IntFlag{
				Name:  "max-question-length",
				Usage: "Reject questions longer than this many characters (0 disables)",
				Value: core.MaxQuestionLength,
			},
			&cli.IntFlag{
				Name:  "buffer-capacity",
				Usage: "Unpolled answer fragments held per question before its worker waits",
				Value: dispatch.DefaultBufferCapacity,
			},
			&cli.DurationFlag{
				Name:  "grace",
				Usage: "How long shutdown waits for busy workers",
				Value: dispatch.DefaultGracePeriod,
			},
			&cli.StringFlag{
				Name:    "provider",
				Usage:   "Engine provider (openai, chatgpt, anthropic, gemini)",
				Value:   ai.ProviderOpenAI,
				EnvVars: []string{"ASKQ_PROVIDER"},
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Engine base URL (required for openai; overrides the vendor endpoint otherwise)",
				EnvVars: []string{"ASKQ_HOST"},
			},
			&cli.StringFlag{
				Name:    "model",
				Usage:   "Model name (defaults per provider)",
				EnvVars: []string{"ASKQ_MODEL"},
			},
			&cli.StringFlag{
				Name:    "system-prompt",
				Usage:   "System prompt for every conversation",
				EnvVars: []string{"ASKQ_SYSTEM_PROMPT"},
			},
			&cli.DurationFlag{
				Name:  "ask-timeout",
				Usage: "Fail an answer when the engine is silent this long",
				Value: dispatch.DefaultAskTimeout,
			},
			&cli.IntFlag{
				Name:  "max-tokens",
				Usage: "Maximum answer length in tokens",
				Value: ai.DefaultConfig().MaxTokens,
			},
			&cli.IntFlag{
				Name:  "max-conversations",
				Usage: "Conversations remembered in memory",
				Value: ai.DefaultConfig().MaxConversations,
			},
			&cli.StringFlag{
				Name:    "access-token",
				Usage:   "Engine credential",
				EnvVars: []string{"ACCESS_TOKEN"},
			},
			&cli.StringFlag{
				Name:  "credential-env",
				Usage: "Read the credential from this environment variable",
			},
			&cli.StringFlag{
				Name:    "credential-ssm-param",
				Usage:   "Read the credential from this AWS SSM parameter",
				EnvVars: []string{"ASKQ_CREDENTIAL_SSM_PARAM"},
			},
			&cli.StringFlag{
				Name:  "credential-keyring-key",
				Usage: "Read the credential from this OS keyring entry",
			},
			&cli.StringFlag{
				Name:  "keyring-service",
				Usage: "OS keyring service name",
				Value: credential.DefaultKeyringService,
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Maximum attempts when resolving the credential",
				Value: 3,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Base delay for exponential backoff",
				Value: 1 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "credential-refresh",
				Usage: "Re-resolve the credential this often (0 disables)",
			},
		},
	}
}

// buildConfig turns flags into a validated engine configuration.
func buildConfig(c *cli.Context) (*ai.Config, error) {
	cfg := ai.NewConfig(
		ai.WithProvider(c.String("provider")),
		ai.WithHost(c.String("host")),
		ai.WithModel(c.String("model")),
		ai.WithSystemPrompt(c.String("system-prompt")),
		ai.WithAskTimeout(c.Duration("ask-timeout")),
		ai.WithMaxTokens(c.Int("max-tokens")),
		ai.WithMaxConversations(c.Int("max-conversations")),
	)
	cfg.Normalize()
	if cfg.Host == "" && cfg.Provider == ai.ProviderOpenAI {
		cfg.Host = ai.DefaultConfig().Host
	}
	if cfg.Model == "" {
		cfg.Model = ai.DefaultModels[cfg.Provider]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// credentialSource picks where the credential comes from. SSM wins over
// the keyring, which wins over a named environment variable, which wins
// over --access-token.
func credentialSource(ctx context.Context, c *cli.Context) (credential.Source, error) {
	switch {
	case c.String("credential-ssm-param") != "":
		return credential.NewSSMFromEnvironment(ctx, c.String("credential-ssm-param"))
	case c.String("credential-keyring-key") != "":
		return credential.OpenKeyring(c.String("keyring-service"), c.String("credential-keyring-key"))
	case c.String("credential-env") != "":
		return credential.Env(c.String("credential-env")), nil
	default:
		return credential.Static(c.String("access-token")), nil
	}
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}

	src, err := credentialSource(ctx, c)
	if err != nil {
		return fmt.Errorf("credential source: %w", err)
	}
	maxRetries, retryDelay := c.Int("max-retries"), c.Duration("retry-delay")
	token, err := credential.Resolve(ctx, src, maxRetries, retryDelay)
	if err != nil {
		return fmt.Errorf("failed to resolve credential: %w", err)
	}

	svc, err := askq.NewService(
		askq.WithAIConfig(cfg),
		askq.WithCredential(token),
		askq.WithDispatchOptions(
			dispatch.WithPoolSize(c.Int("workers")),
			dispatch.WithBufferCapacity(c.Int("buffer-capacity")),
			dispatch.WithGracePeriod(c.Duration("grace")),
			dispatch.WithMonitor(dispatch.NewLogMonitor(slog.Default().With("component", "dispatch"))),
		),
	)
	if err != nil {
		return err
	}
	if err := svc.Start(); err != nil {
		return err
	}

	if every := c.Duration("credential-refresh"); every > 0 {
		go refreshCredential(ctx, svc.Credentials(), src, every, maxRetries, retryDelay)
	}

	server := &http.Server{
		Addr: c.String("addr"),
		Handler: httpapi.NewServer(svc,
			httpapi.WithLogger(slog.Default().With("component", "http")),
			httpapi.WithMaxQuestionLength(c.Int("max-question-length")),
		).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", server.Addr, "provider", cfg.Provider, "model", cfg.Model, "workers", c.Int("workers"))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = svc.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Duration("grace"))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "err", err)
	}
	return svc.Stop()
}

// refreshCredential re-resolves src every interval until ctx is done.
func refreshCredential(ctx context.Context, holder *credential.Holder, src credential.Source, every time.Duration, maxRetries int, retryDelay time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := holder.Refresh(ctx, src, maxRetries, retryDelay); err != nil {
				slog.Warn("credential refresh failed, keeping previous", "err", err)
				continue
			}
			slog.Debug("credential refreshed")
		}
	}
}
