package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/localchat/internal/profile"
	"github.com/hrygo/localchat/internal/version"
	"github.com/hrygo/localchat/plugin/ai"
	"github.com/hrygo/localchat/plugin/ai/modelcache"
	"github.com/hrygo/localchat/server"
	"github.com/hrygo/localchat/store"
	"github.com/hrygo/localchat/store/db"
)

const shutdownTimeout = 30 * time.Second

var (
	rootCmd = &cobra.Command{
		Use:   "localchat",
		Short: "A web chat in front of a locally hosted language model.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	fetchModelCmd = &cobra.Command{
		Use:   "fetch-model",
		Short: "Download the configured checkpoint files into the model cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetchModel(cmd.Context())
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 5000)
	viper.SetDefault("log-level", "info")

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 5000, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "session store driver: sqlite, postgres or memory")
	flags.String("dsn", "", "database source name (aka. DSN)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "log-level"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("localchat")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, fetchModelCmd)
}

func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:   viper.GetString("mode"),
		Addr:   viper.GetString("addr"),
		Port:   viper.GetInt("port"),
		Data:   viper.GetString("data"),
		Driver: viper.GetString("driver"),
		DSN:    viper.GetString("dsn"),
	}
	instanceProfile.FromEnv()
	instanceProfile.Version = version.GetCurrentVersion(instanceProfile.Mode)

	setupLogger(instanceProfile)

	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

func setupLogger(p *profile.Profile) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if p.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func runServe(ctx context.Context) error {
	instanceProfile, err := loadProfile()
	if err != nil {
		return err
	}

	var instanceStore *store.Store
	if instanceProfile.Driver != "memory" {
		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			return fmt.Errorf("failed to create db driver: %w", err)
		}
		instanceStore = store.New(dbDriver, instanceProfile)
		if err := instanceStore.Migrate(ctx); err != nil {
			_ = instanceStore.Close()
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	s, err := server.NewServer(ctx, instanceProfile, instanceStore)
	if err != nil {
		if instanceStore != nil {
			_ = instanceStore.Close()
		}
		return fmt.Errorf("failed to create server: %w", err)
	}

	printGreetings(instanceProfile)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runFetchModel(ctx context.Context) error {
	instanceProfile, err := loadProfile()
	if err != nil {
		return err
	}

	cfg := ai.NewConfigFromProfile(instanceProfile)
	dir, err := modelcache.New(cfg.Model).Ensure(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s is ready in %s\n", cfg.Model.Name, dir)
	return nil
}

func printGreetings(p *profile.Profile) {
	if p.IsDev() {
		println("Development mode is enabled")
		println("DSN: ", p.DSN)
	}
	fmt.Printf(`---
Server profile
version: %s
data: %s
driver: %s
mode: %s
model: %s
backend: %s
---
`, p.Version, p.Data, p.Driver, p.Mode, p.ModelName, p.InferenceBackend)
	if len(p.Addr) == 0 {
		fmt.Printf("Chat at http://localhost:%d\n", p.Port)
	} else {
		fmt.Printf("Chat at http://%s:%d\n", p.Addr, p.Port)
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
