// Package docs registra el documento OpenAPI servido en /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"Bearer": []}],
    "paths": {
        "/{resource}": {
            "get": {
                "summary": "READ_MANY",
                "parameters": [
                    {"$ref": "#/parameters/resource"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"$ref": "#/responses/ok"}, "401": {"$ref": "#/responses/error"}, "403": {"$ref": "#/responses/error"}}
            },
            "post": {
                "summary": "CREATE",
                "parameters": [{"$ref": "#/parameters/resource"}, {"$ref": "#/parameters/body"}],
                "responses": {"201": {"$ref": "#/responses/ok"}, "400": {"$ref": "#/responses/error"}, "401": {"$ref": "#/responses/error"}, "403": {"$ref": "#/responses/error"}}
            }
        },
        "/{resource}/{id}": {
            "get": {
                "summary": "READ_ONE",
                "parameters": [{"$ref": "#/parameters/resource"}, {"$ref": "#/parameters/id"}],
                "responses": {"200": {"$ref": "#/responses/ok"}, "401": {"$ref": "#/responses/error"}, "403": {"$ref": "#/responses/error"}, "404": {"$ref": "#/responses/error"}}
            },
            "patch": {
                "summary": "UPDATE",
                "parameters": [{"$ref": "#/parameters/resource"}, {"$ref": "#/parameters/id"}, {"$ref": "#/parameters/body"}],
                "responses": {"200": {"$ref": "#/responses/ok"}, "400": {"$ref": "#/responses/error"}, "403": {"$ref": "#/responses/error"}, "404": {"$ref": "#/responses/error"}}
            },
            "delete": {
                "summary": "DELETE",
                "parameters": [{"$ref": "#/parameters/resource"}, {"$ref": "#/parameters/id"}],
                "responses": {"200": {"$ref": "#/responses/ok"}, "403": {"$ref": "#/responses/error"}, "404": {"$ref": "#/responses/error"}}
            }
        },
        "/{resource}/{id}/cancel": {
            "patch": {
                "summary": "CANCEL (appointments, service-bookings, boarding-reservations)",
                "parameters": [{"$ref": "#/parameters/resource"}, {"$ref": "#/parameters/id"}],
                "responses": {"200": {"$ref": "#/responses/ok"}, "403": {"$ref": "#/responses/error"}, "404": {"$ref": "#/responses/error"}}
            }
        },
        "/users/me": {
            "get": {"summary": "READ_ONE del usuario autenticado", "responses": {"200": {"$ref": "#/responses/ok"}, "401": {"$ref": "#/responses/error"}}},
            "patch": {"summary": "UPDATE del usuario autenticado", "parameters": [{"$ref": "#/parameters/body"}], "responses": {"200": {"$ref": "#/responses/ok"}, "401": {"$ref": "#/responses/error"}}}
        }
    },
    "parameters": {
        "resource": {"name": "resource", "in": "path", "required": true, "type": "string", "description": "users, pets, appointments, medical-records, prescriptions, prescription-details, medication-packages, medicines, rooms, boarding-reservations, service-bookings, service-options, services, payments, notifications"},
        "id": {"name": "id", "in": "path", "required": true, "type": "string"},
        "body": {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
    },
    "responses": {
        "ok": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
        "error": {"description": "Error", "schema": {"$ref": "#/definitions/Envelope"}}
    },
    "definitions": {
        "Envelope": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {}
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Pet Clinic API",
	Description:      "CRUD de la clínica detrás del gate de roles y ownership.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
