package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Tutor Ops API",
        "description": "Session ledger and payroll settlement for the tutoring roster",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and identity"},
        {"name": "Assignments", "description": "Tutor-student assignment administration"},
        {"name": "Sessions", "description": "Append-only session ledger"},
        {"name": "Approvals", "description": "Session review workflow"},
        {"name": "Payroll", "description": "Pay periods, adjustments, invoices and exports"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List assignments",
                "parameters": [
                    {"name": "tutor_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Assignments"],
                "summary": "Create assignment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAssignmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Get assignment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Assignments"],
                "summary": "Update assignment schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateAssignmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Assignments"],
                "summary": "Deactivate assignment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deactivated"}
                }
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "period_start", "in": "query", "type": "string"},
                    {"name": "tutor_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Log a session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Overlapping session"}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get session snapshot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Sessions"],
                "summary": "Amend draft session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AmendSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Session not active or period locked"}
                }
            }
        },
        "/sessions/{id}/events": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get session ledger",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/void": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Void session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Session not active or period locked"}
                }
            }
        },
        "/sessions/{id}/submit": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Submit session for review",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Only draft sessions are submittable"}
                }
            }
        },
        "/sessions/{id}/approve": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Approve submitted session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Only submitted sessions are approvable"}
                }
            }
        },
        "/sessions/{id}/reject": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Reject submitted session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/RejectSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Only submitted sessions are rejectable"}
                }
            }
        },
        "/sessions/bulk-approve": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Bulk approve sessions",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "Per-id outcomes", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/bulk-reject": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Bulk reject sessions",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "Per-id outcomes", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pay-periods/lock": {
            "post": {
                "tags": ["Payroll"],
                "summary": "Lock pay period",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LockPeriodRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Submitted sessions pending review"}
                }
            }
        },
        "/pay-periods/locks": {
            "get": {
                "tags": ["Payroll"],
                "summary": "List locked periods",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pay-periods/adjustments": {
            "get": {
                "tags": ["Payroll"],
                "summary": "List adjustments",
                "parameters": [
                    {"name": "period_start", "in": "query", "required": true, "type": "string"},
                    {"name": "tutor_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Payroll"],
                "summary": "Create adjustment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAdjustmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Pay period locked"}
                }
            }
        },
        "/pay-periods/adjustments/{id}": {
            "delete": {
                "tags": ["Payroll"],
                "summary": "Delete adjustment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Pay period locked"}
                }
            }
        },
        "/payroll/generate": {
            "post": {
                "tags": ["Payroll"],
                "summary": "Generate weekly payroll",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GeneratePayrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Invoices created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invoices already generated"}
                }
            }
        },
        "/payroll/invoices": {
            "get": {
                "tags": ["Payroll"],
                "summary": "List period invoices",
                "parameters": [
                    {"name": "period_start", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payroll/invoices/{id}/pay": {
            "post": {
                "tags": ["Payroll"],
                "summary": "Mark invoice paid",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invoice not in ISSUED status"}
                }
            }
        },
        "/payroll/export": {
            "get": {
                "tags": ["Payroll"],
                "summary": "Export period payroll",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "period_start", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        },
        "/payroll/integrity": {
            "get": {
                "tags": ["Payroll"],
                "summary": "Reconcile period",
                "parameters": [
                    {"name": "period_start", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Integrity report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateAssignmentRequest": {
            "type": "object",
            "properties": {
                "tutor_id": {"type": "string"},
                "student_id": {"type": "string"},
                "subject": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "hourly_rate_cents": {"type": "integer"},
                "allowed_weekdays": {"type": "array", "items": {"type": "string"}},
                "allowed_time_ranges": {"type": "array", "items": {"$ref": "#/definitions/TimeRange"}}
            },
            "required": ["tutor_id", "student_id", "subject", "start_date", "allowed_weekdays", "allowed_time_ranges"]
        },
        "UpdateAssignmentRequest": {
            "type": "object",
            "properties": {
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "hourly_rate_cents": {"type": "integer"},
                "allowed_weekdays": {"type": "array", "items": {"type": "string"}},
                "allowed_time_ranges": {"type": "array", "items": {"$ref": "#/definitions/TimeRange"}}
            },
            "required": ["start_date", "allowed_weekdays", "allowed_time_ranges"]
        },
        "TimeRange": {
            "type": "object",
            "properties": {
                "start": {"type": "string", "example": "15:00"},
                "end": {"type": "string", "example": "18:00"}
            }
        },
        "CreateSessionRequest": {
            "type": "object",
            "properties": {
                "assignment_id": {"type": "string"},
                "student_id": {"type": "string"},
                "starts_at": {"type": "string", "format": "date-time"},
                "ends_at": {"type": "string", "format": "date-time"},
                "notes": {"type": "string"}
            },
            "required": ["assignment_id", "student_id", "starts_at", "ends_at"]
        },
        "AmendSessionRequest": {
            "type": "object",
            "properties": {
                "starts_at": {"type": "string", "format": "date-time"},
                "ends_at": {"type": "string", "format": "date-time"},
                "notes": {"type": "string"}
            },
            "required": ["starts_at", "ends_at"]
        },
        "RejectSessionRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "BulkReviewRequest": {
            "type": "object",
            "properties": {
                "session_ids": {"type": "array", "items": {"type": "string"}},
                "reason": {"type": "string"}
            },
            "required": ["session_ids"]
        },
        "LockPeriodRequest": {
            "type": "object",
            "properties": {
                "period_start": {"type": "string", "example": "2026-02-02"}
            },
            "required": ["period_start"]
        },
        "CreateAdjustmentRequest": {
            "type": "object",
            "properties": {
                "tutor_id": {"type": "string"},
                "period_start": {"type": "string"},
                "type": {"type": "string", "enum": ["BONUS", "PENALTY"]},
                "amount_cents": {"type": "integer"},
                "reason": {"type": "string"}
            },
            "required": ["tutor_id", "period_start", "type", "amount_cents", "reason"]
        },
        "GeneratePayrollRequest": {
            "type": "object",
            "properties": {
                "period_start": {"type": "string", "example": "2026-02-02"}
            },
            "required": ["period_start"]
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
                "pagination": {"type": "object"},
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
