package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	mu      sync.Mutex
	cache   = make(map[reflect.Type]any)
	dotenvs sync.Once
)

// Load fills v from the environment using its `env` struct tags.
//
// The first call reads a .env file from the working directory when one
// exists; real environment variables take precedence over it. Each config
// type is parsed once and later calls receive the cached copy.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvs.Do(func() {
		_ = godotenv.Load()
	})

	key := reflect.TypeFor[T]()

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache[key] = parsed
	*v = parsed
	return nil
}

// MustLoad is like Load but panics on error. Use it during startup only.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

// LoadEnv reads the given env files into the process environment without
// overriding variables that are already set. Earlier files win.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// Reset drops every cached config so the next Load parses again.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	clear(cache)
}
