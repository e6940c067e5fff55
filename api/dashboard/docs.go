// Package dashboard registers the OpenAPI document served at /swagger/.
// Regenerate with `swag init -g internal/dashboard/http/router.go` after
// changing handler annotations.
package dashboard

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Parlour Tech",
            "url": "https://github.com/parlourtech/whopdash"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/livez": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version"}
                }
            }
        },
        "/readyz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version, checks"},
                    "503": {"description": "service not ready"}
                }
            }
        },
        "/v1/oauth/begin": {
            "get": {
                "tags": ["OAuth"],
                "summary": "Begin Installation Handshake",
                "parameters": [
                    {"type": "string", "name": "companyId", "in": "query"},
                    {"type": "string", "name": "experienceId", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "url, state (when Accept: application/json)"},
                    "302": {"description": "Redirect to the platform authorize URL"}
                }
            }
        },
        "/v1/oauth/callback": {
            "get": {
                "tags": ["OAuth"],
                "summary": "Complete Installation Handshake",
                "parameters": [
                    {"type": "string", "name": "state", "in": "query", "required": true},
                    {"type": "string", "name": "code", "in": "query", "required": true}
                ],
                "responses": {
                    "302": {"description": "Redirect to the dashboard with a whop_session cookie"},
                    "400": {"description": "malformed state"},
                    "502": {"description": "handshake failed"}
                }
            }
        },
        "/v1/session": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Current Session",
                "responses": {
                    "200": {"description": "companyId, userId, displayName, expiresAt"},
                    "401": {"description": "login required"}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Issue Session",
                "responses": {
                    "200": {"description": "success, sessionToken, companyId, expiresAt"},
                    "400": {"description": "unknown tenant, malformed token, or malformed request"},
                    "404": {"description": "installation not found"},
                    "503": {"description": "resolution failed"}
                }
            }
        },
        "/v1/session/refresh": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Refresh Session",
                "parameters": [
                    {"type": "string", "name": "companyId", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "success, sessionToken, companyId, expiresAt"},
                    "401": {"description": "login required"},
                    "404": {"description": "installation not found"}
                }
            }
        },
        "/v1/metrics": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Metrics"],
                "summary": "List Daily Metrics",
                "parameters": [
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "companyId, metrics"},
                    "401": {"description": "login required"}
                }
            }
        },
        "/v1/metrics/sync": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Metrics"],
                "summary": "Sync Today's Metrics",
                "responses": {
                    "200": {"description": "day, activeMembers, revenueCents"},
                    "401": {"description": "login required"},
                    "502": {"description": "platform fetch failed"}
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Whop Dashboard Service API",
	Description:      "Tenant identity resolution, installation handshake, and session management for the analytics dashboard embedded in the Whop platform iframe.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
