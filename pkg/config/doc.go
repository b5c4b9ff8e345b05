// Package config loads the ssoadmin settings.
//
// # Overview
//
// Settings come from three layers, later ones winning: built-in defaults, an
// optional YAML profile, and SSOADMIN_* environment variables. A .env file in
// the working directory is loaded into the environment first without
// overriding variables that are already set.
//
// # Configuration Structure
//
// API settings:
//
//	SSOADMIN_API_BASE_URL="https://sso.example.com/api/v1"  # required
//	SSOADMIN_CLIENT_ID="ssoadmin"
//	SSOADMIN_API_TIMEOUT="30s"
//
// Session settings:
//
//	SSOADMIN_SESSION_BACKEND="file"  # file, memory, redis, sqlite3, postgres
//	SSOADMIN_SESSION_DIR="$HOME/.config/ssoadmin"
//	SSOADMIN_REDIS_URL="redis://localhost:6379/0"
//	SSOADMIN_SQL_DSN="file:session.db"
//	SSOADMIN_SESSION_PASSPHRASE="..."  # encrypts the session at rest
//
// Observability settings:
//
//	SSOADMIN_LOG_LEVEL="info"
//	SSOADMIN_LOG_FILE="/var/log/ssoadmin.log"  # rotated
//	SSOADMIN_OTEL_ENABLED="true"
//	SSOADMIN_OTEL_ENDPOINT="localhost:4317"
//
// Profile file (SSOADMIN_PROFILE=profile.yaml):
//
//	api:
//	  base_url: https://sso.example.com/api/v1
//	  timeout: 10s
//	session:
//	  backend: redis
//	  redis_url: redis://localhost:6379/0
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
