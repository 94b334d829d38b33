// Package config loads typed configuration from the environment.
//
// Structs describe their variables with caarlos0/env tags; a local .env file
// is read through godotenv on first use. Every config type is parsed once
// and cached for the life of the process.
//
//	type AppConfig struct {
//		Env      string `env:"APP_ENV" envDefault:"development"`
//		HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg AppConfig
//	config.MustLoad(&cfg)
//
// Call Reset in tests that change the environment between loads.
package config
