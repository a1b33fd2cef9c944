package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/arsuvenir/backend/internal/config"
	"github.com/arsuvenir/backend/internal/db"
	"github.com/arsuvenir/backend/internal/notify"
	"github.com/arsuvenir/backend/internal/server"
	"github.com/arsuvenir/backend/internal/storage"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()
	_ = godotenv.Load()
	cfg := config.Load()
	log := config.NewLogger(cfg.Env)

	dbConn, err := db.ConnectAndMigrate(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("database setup failed")
	}
	if *migrateOnlyFlag {
		log.Info("migrations completed; exiting as requested")
		return
	}

	store, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		log.WithError(err).Fatal("upload dir setup failed")
	}

	handler := server.New(server.Deps{
		DB:        dbConn,
		Log:       log,
		Storage:   store,
		Notifier:  notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log),
		UploadDir: cfg.UploadDir,
	})
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	go func() {
		log.WithFields(logrus.Fields{"env": cfg.Env, "addr": srv.Addr}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
	log.Info("server stopped")
}
