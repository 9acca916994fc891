package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bloopsocial/bloop/internal/auth/jwt"
	"github.com/bloopsocial/bloop/internal/common/config"
	"github.com/bloopsocial/bloop/internal/server"
	"github.com/bloopsocial/bloop/internal/store"
	"github.com/bloopsocial/bloop/pkg/logger"
	"github.com/bloopsocial/bloop/pkg/trace"
	"github.com/bloopsocial/bloop/pkg/version"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of bloop",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bloop version %s\n", version.Get())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	userAddCmd = &cobra.Command{
		Use:   "add",
		Short: "Create a user and print a socket token for it",
		RunE:  addUser,
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue a token for an existing user",
		RunE:  issueToken,
	}

	rootCmd = &cobra.Command{
		Use:          "bloop",
		Short:        "bloop realtime backend",
		Long:         `bloop serves direct messages, notifications and live reactions over REST and websockets`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "", "path to configuration file")

	userAddCmd.Flags().String("username", "", "unique username")
	userAddCmd.Flags().String("displayname", "", "display name")
	userAddCmd.Flags().String("avatar", "", "avatar url")
	_ = userAddCmd.MarkFlagRequired("username")
	userCmd.AddCommand(userAddCmd)

	tokenCmd.Flags().String("user", "", "user id")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(versionCmd, serveCmd, userCmd, tokenCmd)
}

// bootstrap loads the configuration, the logger and the store
func bootstrap() (*config.Config, *zap.Logger, *store.Store, error) {
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration %s: %w", cfgPath, err)
	}
	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	lg.Info("loaded configuration", zap.String("path", cfgPath))

	st, err := store.New(&cfg.Database, lg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, lg, st, nil
}

func serve() error {
	cfg, lg, st, err := bootstrap()
	if err != nil {
		return err
	}
	defer lg.Sync()
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}

	srv, err := server.New(cfg, st, lg)
	if err != nil {
		return err
	}

	lg.Info("starting bloop", zap.String("version", version.Get()), zap.Int("port", cfg.Server.Port))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		lg.Info("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(srv.Shutdown(sctx), shutdownTracing(sctx))
}

func addUser(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username")
	displayName, _ := cmd.Flags().GetString("displayname")
	avatar, _ := cmd.Flags().GetString("avatar")

	cfg, lg, st, err := bootstrap()
	if err != nil {
		return err
	}
	defer lg.Sync()
	defer st.Close()

	u, err := st.CreateUser(cmd.Context(), username, displayName, avatar)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	tok, err := newToken(cfg, u.ID, u.Username)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "id: %s\ntoken: %s\n", u.ID, tok)
	return nil
}

func issueToken(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetString("user")

	cfg, lg, st, err := bootstrap()
	if err != nil {
		return err
	}
	defer lg.Sync()
	defer st.Close()

	u, err := st.GetUser(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	tok, err := newToken(cfg, u.ID, u.Username)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

func newToken(cfg *config.Config, userID, username string) (string, error) {
	svc, err := jwt.NewService(jwt.Config{SecretKey: cfg.JWT.SecretKey, Duration: cfg.JWT.Duration})
	if err != nil {
		return "", err
	}
	return svc.GenerateToken(userID, username)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
