// Package config loads precount's run configuration.
//
// Defaults are overlaid with a YAML file, then with environment variables (optionally read
// from a .env file). Credentials for the destination store come from the environment so the
// YAML file can be committed; everything is passed on explicitly as a Config value.
package config
