// Package config loads the server configuration from the `server:` section
// of config.yaml.
//
// Config fields:
//   - HTTPPort             : port for the REST API and WebSocket hub (default 8080)
//   - Log.Level / Format   : slog level and "json" or "text" handler
//   - CORS.AllowedOrigins  : browser origins allowed to call the API
//   - Auth.Mode            : "apikey" or "none"
//   - Auth.KeyEnv          : environment variable holding the expected API key
//   - Auth.Header          : HTTP header name (default "x-api-key")
//   - History.DefaultLimit : history size when no limit is given (default 10, minimum 1)
//   - Stream.Interval      : WebSocket broadcast period (default 5s)
//   - MQTT                 : optional broker subscription for device readings
//   - Alerts               : threshold rules on spo2/hr and webhook targets
//
// Load(path) applies defaults before unmarshalling, then validates.
// LoadEnv populates the environment from .env files; Watch hot-reloads.
package config
