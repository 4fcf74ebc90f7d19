package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/dbconfig"
)

func setupDatabase() (*sql.DB, error) {
	dbConfig := dbconfig.NewConfigFromEnv()

	database, err := sql.Open("postgres", dbConfig.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	database.SetMaxOpenConns(dbConfig.MaxOpenConns)
	database.SetMaxIdleConns(dbConfig.MaxIdleConns)
	database.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Int("max_open_conns", dbConfig.MaxOpenConns).
		Msg("connected to database")
	return database, nil
}
