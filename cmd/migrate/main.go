// Copyright 2026 The LexGuard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command migrate applies the embedded schema to a PostgreSQL database
// given as a URL argument or in LEXGUARD_DATABASE_URL.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lexguard/lexguard/internal/observability/logger"
	"github.com/lexguard/lexguard/internal/store/postgres"
)

func main() {
	logger.InitLogger(logger.Config{Level: "info", Format: "text", ServiceName: "lexguard-migrate"})

	url := os.Getenv("LEXGUARD_DATABASE_URL")
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	if url == "" {
		fmt.Fprintln(os.Stderr, "usage: migrate <postgres-url> (or set LEXGUARD_DATABASE_URL)")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := postgres.NewFromURL(ctx, url)
	if err != nil {
		slog.Error("failed to connect", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		slog.Error("migration failed", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("migration successful")
}
