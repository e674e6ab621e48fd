package config

import (
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// parseEnv overlays variables from the process environment, after loading
// an optional .env file from the working directory. Only variables that are
// present override config; cleanenv leaves the rest untouched.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if err := cleanenv.ReadEnv(config); err != nil {
		panic(err)
	}
}
