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
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/tournaments": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tournaments"],
                "summary": "Create tournament",
                "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/tournaments/{tournamentID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tournaments"],
                "summary": "Get tournament",
                "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/tournaments/{tournamentID}/participants": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["tournaments"],
                "summary": "Register participants",
                "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}
            }
        },
        "/tournaments/{tournamentID}/bracket": {
            "get": {
                "tags": ["brackets"],
                "summary": "Get bracket",
                "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["brackets"],
                "summary": "Build bracket",
                "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/tournaments/{tournamentID}/standings": {
            "get": {
                "tags": ["brackets"],
                "summary": "Final standings",
                "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}
            }
        },
        "/matches/{matchID}": {
            "get": {
                "tags": ["matches"],
                "summary": "Get match",
                "parameters": [{"type": "integer", "name": "matchID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/matches/{matchID}/sets/{setIndex}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["matches"],
                "summary": "Record one set",
                "parameters": [
                    {"type": "integer", "name": "matchID", "in": "path", "required": true},
                    {"type": "integer", "name": "setIndex", "in": "path", "required": true},
                    {"type": "boolean", "name": "override", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/matches/{matchID}/confirm": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["matches"],
                "summary": "Confirm match result",
                "parameters": [{"type": "integer", "name": "matchID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}
            }
        },
        "/tournaments/{tournamentID}/referees/assignments": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["matches"],
                "summary": "Assign referees to several matches at once",
                "parameters": [{"type": "integer", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/referees/me/matches": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["matches"],
                "summary": "List matches assigned to the current referee",
                "parameters": [{"type": "boolean", "name": "all", "in": "query"}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Table Tennis Bracket API",
	Description:      "Single-elimination brackets, live set scoring and standings.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
