// Package config loads, normalizes, and validates the TOML configuration for
// matchlens. Configuration is always passed explicitly into components at
// construction; nothing in this repository reads settings at import time.
package config
