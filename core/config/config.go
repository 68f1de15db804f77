package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	loadDotenvOnce sync.Once

	mu    sync.RWMutex
	cache = make(map[reflect.Type]any)
)

// Load parses environment variables into cfg. Each configuration type is
// loaded once per process and cached; subsequent calls for the same type
// return the cached value. A .env file in the working directory is loaded
// on first use, if present.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return fmt.Errorf("config: nil target")
	}

	loadDotenvOnce.Do(func() {
		// Missing .env is not an error: production relies on real env vars.
		_ = godotenv.Load()
	})

	typ := reflect.TypeOf(*cfg)

	mu.RLock()
	cached, ok := cache[typ]
	mu.RUnlock()
	if ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", typ, err)
	}

	mu.Lock()
	cache[typ] = *cfg
	mu.Unlock()

	return nil
}

// MustLoad is like Load but panics on failure. Intended for process startup
// where a missing required variable should abort immediately.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
