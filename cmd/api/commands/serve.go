package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/handler"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/auth"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/completion"
	"github.com/zhouzirui/z-chat/backend/internal/service/interaction"
	"github.com/zhouzirui/z-chat/backend/internal/session"
	"github.com/zhouzirui/z-chat/backend/internal/view"
)

const drainTimeout = 30 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(envFile); err != nil {
		log.Printf("warning: failed to load %s: %v", envFile, err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Z Chat backend listening on %s", cfg.Server.Addr)
	if err := runServer(ctx, srv); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := app.loop.Drain(drainCtx); err != nil {
		log.Printf("warning: pending replies not applied before exit: %v", err)
	}
	return nil
}

type app struct {
	router http.Handler
	loop   *interaction.Loop
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg.Session.DefaultSecret {
		log.Println("warning: SESSION_SECRET not set, using the default secret")
	}
	sessions := session.NewStore(session.Config{
		Secret: cfg.Session.Secret,
		Secure: cfg.Session.Secure,
		MaxAge: cfg.Session.MaxAge,
	})

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credentials: %w", err)
	}

	seeds := chat.Seed()
	if cfg.Chat.SeedFile != "" {
		seeds, err = chat.LoadSeedFile(cfg.Chat.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed conversations: %w", err)
		}
		log.Printf("loaded %d conversations from %s", len(seeds), cfg.Chat.SeedFile)
	}

	state, err := chatService.NewState(seeds)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat state: %w", err)
	}

	renderer, err := view.NewHTMLRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize views: %w", err)
	}

	loop := interaction.New(state, newCompleter(ctx, cfg.AI))

	router := handler.NewRouter(handler.Dependencies{
		Sessions:       sessions,
		Auth:           auth.NewService(verifier),
		State:          state,
		Loop:           loop,
		Renderer:       renderer,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	return &app{router: router, loop: loop}, nil
}

func newVerifier(cfg config.AuthConfig) (*auth.StaticVerifier, error) {
	if cfg.PasswordHash != "" {
		return auth.NewStaticVerifierFromHash(cfg.Email, cfg.PasswordHash, cfg.UserID)
	}
	return auth.NewStaticVerifier(cfg.Email, cfg.Password, cfg.UserID)
}

// newCompleter never fails: a missing credential surfaces as the assistant
// reply of the first send.
func newCompleter(ctx context.Context, cfg config.AIConfig) completion.Completer {
	if cfg.Provider == config.ProviderArk {
		completer, err := newArkCompleter(ctx, cfg.Ark)
		if err == nil {
			log.Printf("completion provider: ark model=%s", cfg.Ark.Model)
			return completer
		}
		log.Printf("warning: failed to initialize Ark model: %v", err)
		log.Println("falling back to OpenRouter")
	}

	if !cfg.Enabled() {
		log.Println("warning: OPENROUTER_API_KEY not set, replies will report the missing key")
	}

	client := completion.NewClient(cfg.APIKey).
		WithBaseURL(cfg.BaseURL).
		WithModel(cfg.Model).
		WithAttribution(cfg.SiteURL, cfg.SiteName)
	log.Printf("completion provider: openrouter model=%s", client.Model())

	completer, err := completion.NewModelCompleter(ctx, client)
	if err != nil {
		log.Printf("warning: failed to build completion chain: %v", err)
		return client
	}
	return completer
}

func newArkCompleter(ctx context.Context, cfg config.ArkConfig) (completion.Completer, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}
	return completion.NewModelCompleter(ctx, chatModel)
}

// runServer serves until ctx ends. Shutdown cancels the base context of every
// request so SSE and websocket handlers return instead of holding Shutdown.
func runServer(ctx context.Context, srv *http.Server) error {
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv.BaseContext = func(net.Listener) context.Context { return baseCtx }
	srv.RegisterOnShutdown(cancelBase)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
