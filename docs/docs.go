// Package docs registers the Swagger document served at /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Dependency health",
                "responses": {
                    "200": {"description": "healthy or degraded", "schema": {"$ref": "#/definitions/services.ServiceHealth"}},
                    "503": {"description": "store unavailable", "schema": {"$ref": "#/definitions/services.ServiceHealth"}}
                }
            }
        },
        "/auth/google/login": {
            "get": {
                "tags": ["auth"],
                "summary": "Start Google sign-in",
                "responses": {"302": {"description": "redirect to the identity provider"}}
            }
        },
        "/auth/google/callback": {
            "get": {
                "tags": ["auth"],
                "summary": "Finish Google sign-in",
                "parameters": [
                    {"type": "string", "name": "code", "in": "query"},
                    {"type": "string", "name": "state", "in": "query", "required": true}
                ],
                "responses": {
                    "302": {"description": "signed in, session cookie set"},
                    "400": {"description": "missing code", "schema": {"$ref": "#/definitions/response.APIResponse"}},
                    "401": {"description": "state mismatch or rejected code", "schema": {"$ref": "#/definitions/response.APIResponse"}},
                    "503": {"description": "profile store unavailable", "schema": {"$ref": "#/definitions/response.APIResponse"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign out",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.APIResponse"}},
                    "401": {"description": "not signed in", "schema": {"$ref": "#/definitions/response.APIResponse"}}
                }
            }
        },
        "/auth/events": {
            "get": {
                "tags": ["auth"],
                "summary": "Auth state stream",
                "description": "Websocket. Sends the current state first, then every sign-in and sign-out of the account.",
                "responses": {"101": {"description": "switching protocols"}}
            }
        },
        "/api/v1/profile": {
            "get": {
                "produces": ["application/json"],
                "tags": ["profile"],
                "summary": "Current profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.APIResponse"}},
                    "401": {"description": "not signed in", "schema": {"$ref": "#/definitions/response.APIResponse"}},
                    "503": {"description": "store unavailable", "schema": {"$ref": "#/definitions/response.APIResponse"}}
                }
            }
        },
        "/api/v1/badges": {
            "get": {
                "produces": ["application/json"],
                "tags": ["profile"],
                "summary": "Badge catalog",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.APIResponse"}}}
            }
        },
        "/api/v1/games": {
            "get": {
                "produces": ["application/json"],
                "tags": ["games"],
                "summary": "Games with their badge thresholds",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.APIResponse"}}}
            }
        },
        "/api/v1/games/{gameType}/sessions": {
            "post": {
                "produces": ["application/json"],
                "tags": ["games"],
                "summary": "Start a game",
                "parameters": [
                    {"enum": ["waste_sorting", "water_saver", "plant_tree"], "type": "string", "name": "gameType", "in": "path", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/response.APIResponse"}},
                    "400": {"description": "unknown game", "schema": {"$ref": "#/definitions/response.APIResponse"}},
                    "409": {"description": "another game in progress", "schema": {"$ref": "#/definitions/response.APIResponse"}}
                }
            }
        },
        "/api/v1/games/sessions/{id}/complete": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["games"],
                "summary": "Complete a game",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/games.CompleteRequest"}}
                ],
                "responses": {
                    "200": {"description": "recorded", "schema": {"$ref": "#/definitions/response.APIResponse"}},
                    "202": {"description": "not fully recorded", "schema": {"$ref": "#/definitions/response.APIResponse"}},
                    "404": {"description": "no active game", "schema": {"$ref": "#/definitions/response.APIResponse"}},
                    "409": {"description": "not the active session", "schema": {"$ref": "#/definitions/response.APIResponse"}}
                }
            }
        },
        "/api/v1/games/sessions/{id}": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["games"],
                "summary": "Abandon a game",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.APIResponse"}},
                    "404": {"description": "no active game", "schema": {"$ref": "#/definitions/response.APIResponse"}}
                }
            }
        },
        "/api/v1/analytics/class": {
            "get": {
                "produces": ["application/json"],
                "tags": ["analytics"],
                "summary": "Class analytics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.APIResponse"}},
                    "403": {"description": "teachers only", "schema": {"$ref": "#/definitions/response.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "response.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"$ref": "#/definitions/response.ErrorDetail"},
                "request_id": {"type": "string"},
                "timestamp": {"type": "string"},
                "version": {"type": "string"}
            }
        },
        "response.ErrorDetail": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "message": {"type": "string"},
                "code": {"type": "string"},
                "details": {"type": "object"}
            }
        },
        "games.CompleteRequest": {
            "type": "object",
            "properties": {
                "score": {"type": "integer", "minimum": 0, "maximum": 100000}
            }
        },
        "services.ServiceHealth": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "timestamp": {"type": "string"},
                "uptime": {"type": "string"},
                "dependencies": {"type": "object"},
                "issues": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Planet Hero API",
	Description:      "Sustainability mini-games: sign-in, game sessions, points and badges.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
