package config

import (
	"fmt"
	"strings"
)

const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

func NormalizeStoreBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		backend = StoreFile
	}
	switch backend {
	case StoreFile, StoreRedis, StoreMemory:
		return backend, nil
	case "fs", "disk":
		return StoreFile, nil
	case "mem", "none":
		return StoreMemory, nil
	default:
		return "", fmt.Errorf(
			"invalid store backend %q (expected %s|%s|%s)",
			raw,
			StoreFile,
			StoreRedis,
			StoreMemory,
		)
	}
}
