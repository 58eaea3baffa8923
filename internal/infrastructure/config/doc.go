// Package config loads homeconnect-core settings from a YAML file and
// HOMECONNECT_* environment variables.
//
// Load applies defaults first, then the file, then the environment, and
// finally validates the result. Every problem found during validation is
// reported in a single error so an operator can fix the file in one pass.
//
// Secrets (client secret, refresh token, MQTT password, InfluxDB token,
// API JWT secret) are normally supplied through the environment:
//
//	HOMECONNECT_CLIENT_SECRET=... HOMECONNECT_REFRESH_TOKEN=... homeconnect
//
// Durations are stored as whole seconds or days and read through the Get*
// helpers, for example:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	client := homeconnect.New(cfg.BaseURL(), store,
//	    homeconnect.WithTimeout(cfg.GetRequestTimeout()))
package config
