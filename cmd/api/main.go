package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/karmakanban/karmakanban-backend/internal/config"
	"github.com/karmakanban/karmakanban-backend/internal/jobs"
	"github.com/karmakanban/karmakanban-backend/internal/logging"
	"github.com/karmakanban/karmakanban-backend/internal/otp"
	"github.com/karmakanban/karmakanban-backend/internal/repository/postgres"
	"github.com/karmakanban/karmakanban-backend/internal/service"
	transport "github.com/karmakanban/karmakanban-backend/internal/transport/http"
	"github.com/karmakanban/karmakanban-backend/internal/transport/mail"
	"github.com/karmakanban/karmakanban-backend/internal/util"
)

func main() {
	cfg := config.Load()

	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if cfg.LogstashTCPAddr != "" {
		hook, err := logging.NewLogstashHook(cfg.LogstashTCPAddr)
		if err != nil {
			log.WithError(err).Warn("logstash hook disabled")
		} else {
			log.AddHook(hook)
			defer hook.Close()
		}
	}

	if cfg.DBAutoMigrate {
		if err := postgres.Migrate(cfg.DatabaseURL, "up"); err != nil {
			log.WithError(err).Fatal("database migration failed")
		}
	}

	db, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	users := postgres.NewUserRepo(db)
	roles := postgres.NewRoleRepo(db)
	sessions := postgres.NewSessionRepo(db)
	resetTokens := postgres.NewResetTokenRepo(db)

	jwtManager := util.NewJWTManager(cfg.JWTSecret, cfg.SessionTTL)
	authService := service.NewAuthService(users, roles, sessions, jwtManager, cfg.AdminEmails)

	pr := cfg.PasswordReset
	challenges := otp.NewStore(
		otp.WithTTL(pr.OTPTTL),
		otp.WithPurgeAfter(pr.PurgeAfter),
		otp.WithMaxAttempts(pr.MaxAttempts),
		otp.WithCodeLength(pr.OTPLength),
	)
	defer challenges.Close()

	resetService := service.NewPasswordResetService(users, sessions, service.PasswordResetServiceConfig{
		Challenges: challenges,
		Ledger:     service.NewResetTokenLedger(resetTokens, pr.TokenTTL),
		Mailer:     selectMailer(cfg, log),
		Logger:     log.WithField("component", "password_reset"),
	})

	scheduler := jobs.NewScheduler(log.WithField("component", "jobs"))
	if err := scheduler.AddTokenSweep(pr.SweepSchedule, resetService); err != nil {
		log.WithError(err).WithField("schedule", pr.SweepSchedule).Fatal("invalid reset token sweep schedule")
	}
	scheduler.Start()

	e := transport.NewRouter(cfg.AllowOrigins, log)
	transport.RegisterAuth(e, authService)
	transport.RegisterPasswordReset(e, resetService)
	transport.RegisterAdmin(e, authService, resetService)
	transport.RegisterSwagger(e)

	go func() {
		log.WithField("port", cfg.Port).Info("KarmaKanban API listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// selectMailer prefers SendGrid, then SMTP. Without either, codes are only
// logged, which is meant for local development.
func selectMailer(cfg config.Config, log *logrus.Logger) service.PasswordResetSender {
	validFor := cfg.PasswordReset.OTPTTL
	switch {
	case cfg.SendGridAPIKey != "" && cfg.SendGridFromEmail != "":
		return mail.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName, cfg.SendGridSandbox, validFor)
	case cfg.SMTPHost != "" && cfg.SMTPFrom != "":
		return mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, validFor)
	default:
		log.Warn("no mail transport configured, password reset codes will be logged")
		return mail.NewLogMailer(log.WithField("component", "mail"))
	}
}
