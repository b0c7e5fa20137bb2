// Package config defines the node configuration a bootstrap run works from.
//
// A [Config] starts from [Default], is overlaid with the YAML file given on
// the command line, then with K8SOLO_* environment variables, and is finally
// validated. Timeouts are read from K8SOLO_TIMEOUT_* variables only, so they
// can be tuned for a slow machine without touching the file.
package config
