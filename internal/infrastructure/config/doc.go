// Package config handles loading and validating Bosun Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with BOSUN_* environment variables
//   - Validation of required fields
//   - Device provisioning entries and the rule environment
//
// Sensitive values (MQTT password, InfluxDB token, JWT secret) should be set
// through the environment rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
