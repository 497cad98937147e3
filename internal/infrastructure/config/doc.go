// Package config handles loading and validating devcaps configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with DEVCAPS_* environment variables
//   - Validation of required fields, collecting every error
//   - Default value handling
//
// Security Considerations:
//   - Broker and InfluxDB credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/devcaps.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Catalog.Path)
package config
