// Package docs holds the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/radio/commands": {
            "post": {
                "description": "Validate a command line and send it to the radio. Invalid commands never reach the radio.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Radio"],
                "summary": "Execute command",
                "parameters": [
                    {"description": "Command", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CommandRequest"}}
                ],
                "responses": {
                    "200": {"description": "Command executed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid command", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "403": {"description": "Blocked by safe mode", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Outcome of radio rx or radio tx not yet read", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Radio rejected command", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "504": {"description": "Radio did not answer", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/radio/validate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Radio"],
                "summary": "Validate command",
                "parameters": [
                    {"description": "Command", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CommandRequest"}}
                ],
                "responses": {
                    "200": {"description": "Command is valid", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid command", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/radio/events/next": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Radio"],
                "summary": "Read radio event",
                "responses": {
                    "200": {"description": "Event received", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "No radio exchange pending", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "504": {"description": "Timed out waiting for the radio", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/radio/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Radio"],
                "summary": "Radio status",
                "responses": {
                    "200": {"description": "Status retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/radio/safe-mode": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Radio"],
                "summary": "Set safe mode",
                "parameters": [
                    {"description": "Safe mode", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.SafeModeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Safe mode updated", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/radio/config": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Config"],
                "summary": "Get configuration",
                "responses": {
                    "200": {"description": "Configuration retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "503": {"description": "Radio not started", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Config"],
                "summary": "Push configuration",
                "parameters": [
                    {"description": "Configuration; only the radio group is applied", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.DeviceConfig"}}
                ],
                "responses": {
                    "200": {"description": "Configuration pushed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid configuration", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Push failed", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/radio/config/pull": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Config"],
                "summary": "Pull configuration",
                "responses": {
                    "200": {"description": "Configuration pulled", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Pull aborted", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/radio/config/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Config"],
                "summary": "Snapshot history",
                "parameters": [
                    {"type": "integer", "default": 20, "description": "Maximum snapshots", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "History retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "History requires the postgres driver", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/discovery/scan": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Discovery"],
                "summary": "Scan for radios",
                "parameters": [
                    {"enum": ["all", "serial", "usb", "tcp"], "type": "string", "default": "all", "description": "Scan type", "name": "type", "in": "query"},
                    {"type": "boolean", "description": "Ask each candidate for its firmware banner", "name": "probe", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Device scan completed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid scan type", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/discovery/scanners": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Discovery"],
                "summary": "Available scanners",
                "responses": {
                    "200": {"description": "Scanners retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.CommandRequest": {
            "type": "object",
            "required": ["command"],
            "properties": {
                "command": {"type": "string", "example": "radio get freq"}
            }
        },
        "handler.SafeModeRequest": {
            "type": "object",
            "required": ["enabled"],
            "properties": {
                "enabled": {"type": "boolean"}
            }
        },
        "model.DeviceConfig": {
            "type": "object",
            "properties": {
                "sys": {"type": "object", "additionalProperties": {"type": "string"}},
                "mac": {"type": "object", "additionalProperties": {"type": "string"}},
                "radio": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "utils.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "utils.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {"$ref": "#/definitions/utils.APIError"},
                "timestamp": {"type": "string"},
                "request_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8084",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "RN2903 Radio Service API",
	Description:      "Control API for a Microchip RN2903 LoRa radio: validated commands, configuration pull/push and event streaming",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
