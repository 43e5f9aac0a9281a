// Package api defines the wire types of the CareFlow HTTP API.
//
// This package contains the request and response structures shared by
// the HTTP handlers and API clients, annotated for OpenAPI generation.
//
// # API Overview
//
// CareFlow exposes a RESTful API for:
//   - Customer query orchestration across the agent mesh (/query)
//   - A2A (Agent-to-Agent) protocol endpoints (/a2a/*, agent cards)
//   - Health monitoring and version reporting
//
// # Authentication
//
// When authentication is enabled, endpoints accept either an API key
// or a bearer token:
//
//	X-API-Key: your-api-key
//	Authorization: Bearer <jwt>
//
// # Base URLs
//
// Each agent role listens on its own port by default:
//
//	router  http://localhost:8100
//	data    http://localhost:8101
//	support http://localhost:8102
//
// # Generating Documentation
//
// To regenerate Swagger documentation using swag:
//
//	swag init -g cmd/careflow/main.go -o api --parseDependency --parseInternal
package api
