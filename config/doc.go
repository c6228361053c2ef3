// Package config loads the settings of the topstack command from a YAML or
// JSON file, environment variables and defaults, in that order of precedence
// reversed: environment beats file, file beats defaults.
//
// Library packages never read configuration themselves. They take plain
// structs and options; this package converts a validated Config into them:
//
//	cfg, err := config.Load("topstack.yaml")
//	if err != nil {
//	    return err
//	}
//	api, err := client.New(cfg.ClientConfig())
//	nc, err := natsclient.NewClient(cfg.Bus.URL, cfg.NATSOptions(logger, registry)...)
//
// # File Format
//
//	api:
//	  base_url: https://topstack.example.com
//	  api_key: ak-123
//	  project_id: project_001
//	  timeout: 30s
//	  page_size: 10
//	bus:
//	  driver: nats          # nats or mqtt
//	  url: nats://broker:4222
//	  token: secret
//	  queue_size: 256
//	log:
//	  level: info           # debug, info, warn, error
//	  format: json          # json or text
//	metrics:
//	  addr: ":9090"
//
// Unknown keys are rejected so a typo never silently falls back to a default.
//
// # Environment
//
// Every TOPSTACK_* variable listed in EnvVars overrides its field, for
// example TOPSTACK_API_KEY or TOPSTACK_BUS_URL. Durations use Go syntax ("45s").
package config
