package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/mikepea/budgetshare/pkg/budgetshare/auth"
	"github.com/mikepea/budgetshare/pkg/budgetshare/config"
	"github.com/mikepea/budgetshare/pkg/budgetshare/database"
	"github.com/mikepea/budgetshare/pkg/budgetshare/logging"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
	"github.com/mikepea/budgetshare/pkg/budgetshare/notify"
	"github.com/mikepea/budgetshare/pkg/budgetshare/refdata"
	"github.com/mikepea/budgetshare/pkg/budgetshare/server"
)

// @title budgetshare API
// @version 1.0
// @description Shared household budgets: groups, invitations and a ledger of incomes and expenses.

// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token or API key. Format: "Bearer {token}"

func main() {
	configPath := flag.String("config", os.Getenv("BUDGETSHARE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Config.DotenvFailed")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Config.LoadFailed")
	}
	logger := logging.SetupLogging(cfg.Log)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server.Failed")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	gin.SetMode(cfg.Server.Mode)
	auth.Configure(cfg.JWT)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := models.AutoMigrate(db); err != nil {
		return err
	}
	logger.Info("Database.Migrated")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := refdata.Seed(ctx, db, cfg.ReferenceData.Categories); err != nil {
		return err
	}
	catalog := refdata.NewCatalog(db)
	if err := catalog.Load(ctx); err != nil {
		return err
	}

	if err := ensureAdminExists(db, cfg.Admin, logger); err != nil {
		return err
	}

	notifier, closeNotifier, err := newNotifier(cfg.Notify, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()
	dispatcher := notify.NewDispatcher(notifier, cfg.Notify.Timeout, logger)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: server.New(server.Deps{
			DB:         db,
			Catalog:    catalog,
			Dispatcher: dispatcher,
			Logger:     logger,
			Location:   loc,
		}),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", srv.Addr).Info("Server.Starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server.ShuttingDown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	dispatcher.Wait()
	logger.Info("Server.Stopped")
	return err
}

func newNotifier(cfg config.NotifyConfig, logger *logrus.Logger) (notify.Notifier, func(), error) {
	if cfg.Driver != "amqp" {
		return notify.LogNotifier{Logger: logger}, func() {}, nil
	}
	n, err := notify.NewAMQPNotifier(cfg)
	if err != nil {
		return nil, nil, err
	}
	return n, func() {
		if err := n.Close(); err != nil {
			logger.WithError(err).Warn("Notify.CloseFailed")
		}
	}, nil
}

// ensureAdminExists creates the configured system admin if no admin exists.
func ensureAdminExists(db *gorm.DB, cfg config.AdminConfig, logger *logrus.Logger) error {
	var count int64
	if err := db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        cfg.Email,
		Name:         "Admin",
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleAdmin,
	}
	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	logger.WithField("email", adminUser.Email).Warn("Admin.Created")
	return nil
}
