package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/InkLedgerLabs/certmark/backend/internal/auth"
	"github.com/InkLedgerLabs/certmark/backend/internal/builder"
	"github.com/InkLedgerLabs/certmark/backend/internal/changelog"
	"github.com/InkLedgerLabs/certmark/backend/internal/config"
	"github.com/InkLedgerLabs/certmark/backend/internal/database"
	"github.com/InkLedgerLabs/certmark/backend/internal/logging"
	"github.com/InkLedgerLabs/certmark/backend/internal/rbac"
	"github.com/InkLedgerLabs/certmark/backend/internal/server"
	"github.com/InkLedgerLabs/certmark/backend/internal/template"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "certmark-api",
		Short: "CertMark certificate builder backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("template-dir", defaults.GetString("templates.dir"), "Directory for uploaded certificate templates")
	cmd.PersistentFlags().Int("debounce-ms", defaults.GetInt("changes.debounce_ms"), "Change queue debounce in milliseconds")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Backend token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Backend signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "templates.dir", "template-dir")
	bindFlag(cmd, "changes.debounce_ms", "debounce-ms")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if err := os.MkdirAll(appConfig.TemplateDir, 0o755); err != nil {
		return err
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	idProvider := builder.NewUUIDProvider()

	tokenManager := auth.NewTokenManager(auth.TokenManagerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "certmark-auth",
		Audience:      "certmark-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	changeWriter, err := database.NewChangeWriter(database.ChangeWriterConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	approver, err := database.NewApprover(database.ApproverConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	projects, err := database.NewProjects(db, time.Now, logger)
	if err != nil {
		return err
	}

	sessions := server.NewSessionManager(func(projectID string) (*server.BuilderSession, error) {
		notices := server.NewNoticeBoard(time.Now)

		queue, err := changelog.NewQueue(changelog.QueueConfig{
			Saver:    changeWriter,
			Debounce: appConfig.ChangeDebounce,
			Logger:   logger,
			Notifier: notices,
		})
		if err != nil {
			return nil, err
		}

		store, err := builder.NewStore(builder.StoreConfig{
			ProjectID:  projectID,
			Gate:       rbac.Gate{},
			Changes:    server.QueueSink{Queue: queue},
			Approver:   approver,
			Notifier:   notices,
			IDProvider: idProvider,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}

		hydrateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		records, err := projects.ListAnnotations(hydrateCtx, projectID)
		if err != nil {
			return nil, err
		}
		byPage, err := database.DecodeAnnotationsByPage(records)
		if err != nil {
			return nil, err
		}
		store.SeedAnnotations(byPage)

		session := &server.BuilderSession{
			ProjectID: projectID,
			Store:     store,
			Queue:     queue,
			Notices:   notices,
		}

		record, err := projects.Get(hydrateCtx, projectID)
		if err == nil && record.TemplatePath != "" {
			if info, inspectErr := template.Inspect(record.TemplatePath); inspectErr == nil {
				session.SetTemplate(info)
			} else {
				logger.Warn("stored template no longer readable",
					zap.String("project_id", projectID),
					zap.Error(inspectErr))
			}
		}

		return session, nil
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenValidator: tokenManager,
		Sessions:       sessions,
		Projects:       projects,
		IDProvider:     idProvider,
		TemplateDir:    appConfig.TemplateDir,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		flushSessions(shutdownCtx, sessions, logger)
		return nil
	case err := <-errCh:
		return err
	}
}

// flushSessions drains every live change queue so pending edits are not lost
// across restarts.
func flushSessions(ctx context.Context, sessions *server.SessionManager, logger *zap.Logger) {
	for _, session := range sessions.Sessions() {
		if err := session.Queue.Close(ctx); err != nil {
			logger.Warn("final change flush failed",
				zap.String("project_id", session.ProjectID),
				zap.Error(err))
		}
	}
}
