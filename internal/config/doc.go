// Package config handles configuration loading for clawdesk.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	gateway:
//	  token: "${CLAWDESK_GATEWAY_TOKEN}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	gateway:
//	  connect_timeout: "10s"
//	  request_timeout: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Gateway connection:
//
//	gateway:
//	  url: "ws://localhost:18789"
//	  token: "${CLAWDESK_GATEWAY_TOKEN}"
//	  connect_timeout: "10s"
//	  request_timeout: "30s"
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"  # Tenant API and chat ingress
//
// Workspaces and database:
//
//	workspace:
//	  base_dir: "/var/lib/clawdesk/workspaces"
//	database:
//	  path: "/var/lib/clawdesk/clawdesk.db"
//
// Tenant resolution:
//
//	resolver:
//	  header_name: "X-Tenant-ID"
//	  root_domain: "clawdesk.example.com"
//	  claim_name: "tenant"
//	  jwt_secret: "${CLAWDESK_JWT_SECRET}"
//
// Lifecycle webhooks:
//
//	notify:
//	  webhook_url: "https://hooks.example.com/tenants"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Gateway URL, HTTP address, workspace dir, and database path presence
//   - Duration format validity
//   - JWT secret presence when claim-based resolution is configured
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/clawdesk/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
