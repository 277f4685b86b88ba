// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package mongodb contains MongoDB client setup for the mapper.
package mongodb

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v7"

	"github.com/absmach/modm/logger"
	"github.com/absmach/modm/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	errConfig  = errors.New("failed to load mongodb configuration")
	errConnect = errors.New("failed to connect to mongodb server")
)

// Config defines the options that are used when connecting to a MongoDB instance.
type Config struct {
	Host string `env:"HOST" envDefault:"localhost"`
	Port string `env:"PORT" envDefault:"27017"`
	Name string `env:"NAME" envDefault:"db"`
}

// Connect creates a connection to the MongoDB instance.
func Connect(cfg Config, log logger.Logger) (*mongo.Database, error) {
	addr := fmt.Sprintf("mongodb://%s:%s", cfg.Host, cfg.Port)
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(addr))
	if err != nil {
		log.Error(fmt.Sprintf("Failed to connect to database: %s", err))
		return nil, errors.Wrap(errConnect, err)
	}

	db := client.Database(cfg.Name)
	return db, nil
}

// Setup loads configuration from the environment, creates a new MongoDB
// client and connects to the MongoDB server.
func Setup(envPrefix string, log logger.Logger) (*mongo.Database, error) {
	cfg := Config{}
	if err := env.Parse(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, errors.Wrap(errConfig, err)
	}
	db, err := Connect(cfg, log)
	if err != nil {
		return nil, err
	}
	return db, nil
}
