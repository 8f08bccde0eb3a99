// Package config loads the pipewatch configuration from a YAML file.
//
// Sections:
//   - log_level      debug | info | warn | error (default info)
//   - poller         interval, build/deploy limits, timezone, ledger retention
//   - provider       backend type, organisation URLs, token_env, definitions
//   - projects       the projects to poll, one poll loop each
//   - server         HTTP/gRPC ports, REST root, stream interval, auth, snapshot TTL
//   - subscriptions  registry backend (memory | sqlite) and webhook timeout
//
// Load(ctx, path) applies defaults, unmarshals the file, applies PIPEWATCH_*
// environment overrides, then validates. Secrets are never read from the file
// directly: token_env and key_env name the variables that hold them.
//
// Watch(ctx, path, onChange) reloads the file on write.
package config
