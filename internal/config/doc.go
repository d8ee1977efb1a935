// Package config provides configuration loading, merging, and validation
// facilities for the application.
//
// Configuration is assembled from multiple sources in the following priority
// order (later sources override earlier non-zero fields):
//  1. A .env file in the working directory (loaded into the environment)
//  2. Environment variables
//  3. Command-line flags
//  4. JSON config file
//  5. Built-in defaults for any field still unset
//
// The main entry points are [GetStructuredConfig] for the raw merged
// configuration and [GetClientConfig] for the client runtime view.
package config
