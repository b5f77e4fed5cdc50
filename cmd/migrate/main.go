package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/karmakanban/karmakanban-backend/internal/logging"
	"github.com/karmakanban/karmakanban-backend/internal/repository/postgres"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	_ = godotenv.Load()
	log := logging.New(os.Getenv("LOG_LEVEL"), "text", os.Stdout)

	dsn := os.Getenv("DATABASE_URL")
	if err := postgres.Migrate(dsn, *direction); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	log.WithFields(logrus.Fields{"direction": *direction}).Info("migrations applied")
}
