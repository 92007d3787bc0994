// Package config loads the engine configuration from YAML, fills defaults and
// validates the result. Environment variables prefixed with DOMTPL_ override
// file values.
package config
