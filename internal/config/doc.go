// Package config handles configuration loading for ward-gateway.
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
//	auth:
//	  jwt_secret: "${WARD_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	process:
//	  request_timeout: "30s"
//	  stop_grace: "5s"
//
// # Backend Servers
//
// Each entry under servers describes one MCP tool server process. Tool
// prefixes must be unique across servers or routing is ambiguous:
//
//	servers:
//	  fs:
//	    command: "mcp-fs-server"
//	    args: ["--root", "/srv/data"]
//	    tool_prefix: "fs."
package config
