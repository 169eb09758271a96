package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the catalog API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>libros - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "libros", "version": "v1.0.0" },
  "components": {
    "schemas": {
      "Book": {
        "type": "object",
        "properties": {
          "id": {"type":"string"}, "isbn": {"type":"string"}, "title": {"type":"string"},
          "author": {"type":"string"}, "publisher": {"type":"string"}, "pageCount": {"type":"integer","minimum":1},
          "coverImage": {"type":"string"}, "createdAt": {"type":"string","format":"date-time"}, "updatedAt": {"type":"string","format":"date-time"}
        }
      },
      "BookForm": {
        "type": "object",
        "properties": {
          "isbn": {"type":"string"}, "title": {"type":"string"}, "author": {"type":"string"},
          "publisher": {"type":"string"}, "pageCount": {"type":"integer"}, "cover": {"type":"string","format":"binary"}
        }
      },
      "ValidationErrors": {
        "type": "object",
        "properties": { "errors": { "type":"array", "items": { "type":"object", "properties": {"field":{"type":"string"},"message":{"type":"string"}} } } }
      }
    }
  },
  "paths": {
    "/api/libros": {
      "get": { "summary": "List all books", "responses": { "200": { "description": "books", "content": { "application/json": { "schema": {"type":"array","items":{"$ref":"#/components/schemas/Book"}} } } } } },
      "post": {
        "summary": "Create a book with an optional cover image",
        "requestBody": { "required": true, "content": { "multipart/form-data": { "schema": {"$ref":"#/components/schemas/BookForm"} } } },
        "responses": { "201": { "description": "created book" }, "400": { "description": "validation errors", "content": { "application/json": { "schema": {"$ref":"#/components/schemas/ValidationErrors"} } } }, "413": { "description": "body too large" }, "415": { "description": "cover is not jpeg, png or gif" } }
      }
    },
    "/api/libros/{id}": {
      "parameters": [ { "name": "id", "in": "path", "required": true, "schema": {"type":"string"} } ],
      "get": { "summary": "Get a book", "responses": { "200": { "description": "book" }, "404": { "description": "book not found" } } },
      "put": {
        "summary": "Update supplied fields and optionally replace the cover",
        "requestBody": { "content": { "multipart/form-data": { "schema": {"$ref":"#/components/schemas/BookForm"} } } },
        "responses": { "200": { "description": "updated book" }, "400": { "description": "validation errors" }, "404": { "description": "book not found" }, "415": { "description": "cover is not jpeg, png or gif" } }
      },
      "delete": { "summary": "Delete a book (its cover file is kept)", "responses": { "200": { "description": "message and deletedBook" }, "404": { "description": "book not found" } } }
    },
    "/api/libros/buscar": {
      "get": {
        "summary": "Case-insensitive substring search",
        "parameters": [
          { "name": "search", "in": "query", "schema": {"type":"string"}, "description": "matches title, author, publisher or isbn" },
          { "name": "author", "in": "query", "schema": {"type":"string"} },
          { "name": "title", "in": "query", "schema": {"type":"string"} },
          { "name": "publisher", "in": "query", "schema": {"type":"string"} }
        ],
        "responses": { "200": { "description": "matching books" } }
      }
    },
    "/api/libros/recientes": {
      "get": { "summary": "Three most recently created books", "responses": { "200": { "description": "books, newest first" }, "404": { "description": "no books available" } } }
    },
    "/api/upload": {
      "post": {
        "summary": "Upload a cover image",
        "requestBody": { "required": true, "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"file":{"type":"string","format":"binary"}}} } } },
        "responses": { "201": { "description": "stored fileName" }, "400": { "description": "no file uploaded" }, "413": { "description": "body too large" }, "415": { "description": "not jpeg, png or gif" } }
      }
    },
    "/api/upload/{filename}": {
      "parameters": [ { "name": "filename", "in": "path", "required": true, "schema": {"type":"string"} } ],
      "get": { "summary": "Download a stored cover", "responses": { "200": { "description": "file bytes" }, "404": { "description": "file not found" } } }
    },
    "/health": { "get": { "summary": "Liveness", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness of the record store and cache", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
