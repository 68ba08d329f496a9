package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "PrintLab API",
        "description": "Print job lifecycle and printer assignment engine for the school 3D printing lab",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Accounts and tokens"},
        {"name": "Jobs", "description": "Print job submission and files"},
        {"name": "Lifecycle", "description": "Job status transitions"},
        {"name": "Printers", "description": "Printer fleet"},
        {"name": "Balance", "description": "Account balance and ledger"},
        {"name": "Users", "description": "Account administration"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a student account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and issue tokens",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/jobs": {
            "get": {
                "tags": ["Jobs"],
                "summary": "List print jobs",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "userId", "in": "query", "type": "string"},
                    {"name": "printerId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Jobs"],
                "summary": "Submit a print job",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true},
                    {"name": "material", "in": "formData", "type": "string", "required": true},
                    {"name": "material_weight_g", "in": "formData", "type": "number", "required": true},
                    {"name": "estimated_hours", "in": "formData", "type": "number", "required": true},
                    {"name": "layer_height_mm", "in": "formData", "type": "number"},
                    {"name": "infill_percent", "in": "formData", "type": "integer"},
                    {"name": "supports", "in": "formData", "type": "boolean"},
                    {"name": "priority", "in": "formData", "type": "integer"},
                    {"name": "notes", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/jobs/{id}": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Get a print job with its event history",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/jobs/{id}/review": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Take a pending job under review",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Illegal transition"}
                }
            }
        },
        "/jobs/{id}/approve": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Approve a reviewed job",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "402": {"description": "Insufficient balance"},
                    "409": {"description": "Illegal transition"}
                }
            }
        },
        "/jobs/{id}/reject": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Reject a job under review",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RejectRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/jobs/{id}/assign": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Assign an approved job to a printer",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/AssignRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "No compatible printer"}
                }
            }
        },
        "/jobs/{id}/start": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Start printing",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/jobs/{id}/pause": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Pause a printing job",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/jobs/{id}/resume": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Resume a paused job",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/jobs/{id}/complete": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Complete a job and debit the owner",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CompleteRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/jobs/{id}/fail": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Mark a job as failed",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FailRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/jobs/{id}/cancel": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Cancel a job",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/jobs/{id}/receipt": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Download the PDF receipt of a completed job",
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "PDF receipt"}}
            }
        },
        "/jobs/{id}/download": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Issue a signed download link for the model file",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/printers": {
            "get": {
                "tags": ["Printers"],
                "summary": "List printers",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "material", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Printers"],
                "summary": "Register a printer",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterPrinterRequest"}}
                ],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/printers/{id}/status": {
            "put": {
                "tags": ["Printers"],
                "summary": "Set a printer's operational status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetPrinterStatusRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/printers/{id}/maintenance": {
            "post": {
                "tags": ["Printers"],
                "summary": "Record finished maintenance",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/balance": {
            "get": {
                "tags": ["Balance"],
                "summary": "Quick balance view",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/balance/detail": {
            "get": {
                "tags": ["Balance"],
                "summary": "Full balance view with spend statistics",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/users/{id}/recharge": {
            "post": {
                "tags": ["Balance"],
                "summary": "Credit a user's account",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdjustmentRequest"}}
                ],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/reports/usage": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a usage report",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateReportRequest"}}
                ],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report status",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/reports/download": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished report",
                "produces": ["application/pdf"],
                "parameters": [{"name": "token", "in": "query", "type": "string", "required": true}],
                "responses": {"200": {"description": "PDF file"}}
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "full_name": {"type": "string"}
            },
            "required": ["email", "password", "full_name"]
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RejectRequest": {
            "type": "object",
            "properties": {"reason": {"type": "string"}},
            "required": ["reason"]
        },
        "AssignRequest": {
            "type": "object",
            "properties": {"printer_id": {"type": "string"}}
        },
        "CompleteRequest": {
            "type": "object",
            "properties": {
                "actual_hours": {"type": "number"},
                "actual_cost": {"type": "number"}
            }
        },
        "FailRequest": {
            "type": "object",
            "properties": {"error_message": {"type": "string"}},
            "required": ["error_message"]
        },
        "RegisterPrinterRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "serial": {"type": "string"},
                "type": {"type": "string"},
                "supported_materials": {"type": "array", "items": {"type": "string"}},
                "max_jobs": {"type": "integer"},
                "hourly_cost": {"type": "number"}
            },
            "required": ["name", "serial", "type", "supported_materials"]
        },
        "SetPrinterStatusRequest": {
            "type": "object",
            "properties": {"status": {"type": "string"}},
            "required": ["status"]
        },
        "AdjustmentRequest": {
            "type": "object",
            "properties": {
                "amount": {"type": "number"},
                "job_id": {"type": "string"},
                "reason": {"type": "string"}
            },
            "required": ["amount", "reason"]
        },
        "CreateReportRequest": {
            "type": "object",
            "properties": {
                "from": {"type": "string", "example": "2026-08-01"},
                "to": {"type": "string", "example": "2026-08-31"}
            },
            "required": ["from", "to"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
