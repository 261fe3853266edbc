package config

import (
	"os"
	"strconv"
	"strings"
)

// ImportChunkSize is the staged-operation ceiling per committed import chunk.
// Kept under the store's per-transaction operation limit.
//
// Env override:
// - IMPORT_CHUNK_SIZE=450
func ImportChunkSize() int {
	v := strings.TrimSpace(os.Getenv("IMPORT_CHUNK_SIZE"))
	if v == "" {
		return 450
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 450
	}
	return n
}

// ImportResolveWindow bounds how many import rows may resolve their
// warehouse/zone/rack/shelf/product lookups concurrently.
//
// Env override:
// - IMPORT_RESOLVE_WINDOW=10
func ImportResolveWindow() int {
	v := strings.TrimSpace(os.Getenv("IMPORT_RESOLVE_WINDOW"))
	if v == "" {
		return 10
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10
	}
	return n
}

// PublishStockEvents gates best-effort Pub/Sub stock-movement events.
// Disabled by default for local/dev environments without GCP credentials.
//
// Set via env:
// - PUBLISH_STOCK_EVENTS=true
func PublishStockEvents() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("PUBLISH_STOCK_EVENTS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
