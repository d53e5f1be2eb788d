package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	internalApp "github.com/haierkeys/fast-db-backup-service/internal/app"
	"github.com/haierkeys/fast-db-backup-service/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cliFlags are shared by the one-shot commands.
type cliFlags struct {
	dir    string
	config string
}

func (f *cliFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.dir, "dir", "d", "", "run dir")
	fs.StringVarP(&f.config, "config", "c", "", "config file")
}

// openApp builds an App container for one-shot commands. The scheduler is not started.
// openApp 为单次命令构建 App 容器，不启动调度器
func openApp(f *cliFlags) (*internalApp.App, error) {
	if len(f.dir) > 0 {
		if err := os.Chdir(f.dir); err != nil {
			return nil, fmt.Errorf("chdir: %w", err)
		}
	}

	path, err := resolveConfig(f.config)
	if err != nil {
		return nil, err
	}
	cfg, _, err := internalApp.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg, err := logger.NewLogger(cfg.LoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("initLogger: %w", err)
	}
	if err := initStorageWithConfig(cfg); err != nil {
		return nil, fmt.Errorf("initStorage: %w", err)
	}
	db, err := initDatabaseWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("initDatabase: %w", err)
	}

	app, err := internalApp.NewApp(cfg, lg, db)
	if err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to create app container: %w", err)
	}
	return app, nil
}

// withApp runs fn against a fresh container and shuts it down afterwards.
// SIGINT and SIGTERM cancel the context passed to fn.
func withApp(f *cliFlags, fn func(ctx context.Context, app *internalApp.App) error) error {
	app, err := openApp(f)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := fn(ctx, app)

	if err := app.Shutdown(context.Background()); err != nil {
		app.Logger().Warn("app shutdown", zap.Error(err))
	}
	_ = app.Logger().Sync()
	return runErr
}

func printJSON(v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
