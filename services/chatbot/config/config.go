// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the chatbot service configuration from the
// environment. Every knob has a default so the service can start with only
// R2R_BASE_URL set.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the chatbot service.
//
// # Fields
//
//   - Port: HTTP listen port.
//   - R2RBaseURL: Base URL of the R2R backend (e.g. https://api.sciphi.ai).
//   - R2RAPIKey: Credential for the R2R backend. May be empty for a local
//     unauthenticated instance.
//   - SessionTimeout: Inactivity window after which a session expires.
//   - ReaperInterval: Period of the background expiry scan.
//   - StreamPacing: Cosmetic delay between streamed word chunks. Zero
//     disables pacing.
//   - DocsDir: Directory for generated portfolio documents.
//   - RAGModel, RAGTemperature, RAGMaxTokens, RAGSearchLimit: Generation
//     defaults forwarded to the backend on every agent call.
type Config struct {
	Port           string
	R2RBaseURL     string
	R2RAPIKey      string
	SessionTimeout time.Duration
	ReaperInterval time.Duration
	StreamPacing   time.Duration
	DocsDir        string
	RAGModel       string
	RAGTemperature float64
	RAGMaxTokens   int
	RAGSearchLimit int
}

// Load reads configuration from the environment, applying defaults for
// anything unset. Invalid numeric values are logged and replaced by the
// default rather than failing startup.
func Load() Config {
	cfg := Config{
		Port:           envOr("CHATBOT_PORT", "8000"),
		R2RBaseURL:     strings.Trim(os.Getenv("R2R_BASE_URL"), "\"' "),
		R2RAPIKey:      os.Getenv("R2R_API_KEY"),
		SessionTimeout: envMinutes("SESSION_TIMEOUT_MINUTES", 30),
		ReaperInterval: envMinutes("REAPER_INTERVAL_MINUTES", 5),
		StreamPacing:   time.Duration(envInt("CHAT_STREAM_PACING_MS", 30)) * time.Millisecond,
		DocsDir:        envOr("DOCS_DIR", "docs"),
		RAGModel:       envOr("RAG_MODEL", "gpt-4o-mini"),
		RAGTemperature: envFloat("RAG_TEMPERATURE", 0.1),
		RAGMaxTokens:   envInt("RAG_MAX_TOKENS", 4000),
		RAGSearchLimit: envInt("RAG_SEARCH_LIMIT", 25),
	}

	if cfg.R2RBaseURL == "" {
		slog.Warn("R2R_BASE_URL is not set; session initialization will fail until it is configured")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid float in environment, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}

func envMinutes(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Minute
}
