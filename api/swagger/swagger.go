package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Library Loans API",
        "description": "Gestión de préstamos de la biblioteca: registro, consulta, devolución y vencimiento automático.",
        "version": "1.0.0"
    },
    "basePath": "/v1.0",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Prestamos", "description": "Ciclo de vida de los préstamos"},
        {"name": "Administracion", "description": "Operaciones de mantenimiento"}
    ],
    "paths": {
        "/prestamos": {
            "get": {
                "tags": ["Prestamos"],
                "summary": "Listar préstamos",
                "parameters": [
                    {"name": "estado", "in": "query", "type": "string", "enum": ["Prestado", "Vencido", "Devuelto"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LoanList"}},
                    "400": {"description": "Estado inválido", "schema": {"$ref": "#/definitions/Error"}}
                }
            },
            "post": {
                "tags": ["Prestamos"],
                "summary": "Registrar un préstamo",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateLoanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Creado", "schema": {"$ref": "#/definitions/LoanEnvelope"}},
                    "400": {"description": "Datos inválidos", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "Estudiante con préstamo activo o libro no disponible", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/prestamos/{id}": {
            "get": {
                "tags": ["Prestamos"],
                "summary": "Obtener un préstamo",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LoanEnvelope"}},
                    "404": {"description": "No encontrado", "schema": {"$ref": "#/definitions/Error"}}
                }
            },
            "patch": {
                "tags": ["Prestamos"],
                "summary": "Actualizar atributos de un préstamo",
                "description": "Solo admite observaciones, estado, fechaDevolucion e historialEstado.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoanPatch"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LoanEnvelope"}},
                    "400": {"description": "Atributo, estado o fecha inválidos", "schema": {"$ref": "#/definitions/Error"}},
                    "404": {"description": "No encontrado", "schema": {"$ref": "#/definitions/Error"}}
                }
            },
            "delete": {
                "tags": ["Prestamos"],
                "summary": "Eliminar un préstamo",
                "description": "Solo se eliminan préstamos en estado Prestado.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Eliminado", "schema": {"$ref": "#/definitions/LoanEnvelope"}},
                    "404": {"description": "No encontrado", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "Préstamo devuelto o vencido", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/prestamos/{id}/devolucion": {
            "post": {
                "tags": ["Prestamos"],
                "summary": "Registrar la devolución",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ReturnLoanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LoanEnvelope"}},
                    "404": {"description": "No encontrado", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "Ya devuelto", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/prestamos/por-libro/{bookId}": {
            "get": {
                "tags": ["Prestamos"],
                "summary": "Préstamos de un libro",
                "parameters": [
                    {"name": "bookId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LoanList"}},
                    "404": {"description": "Sin préstamos", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/prestamos/por-estudiante/{studentId}": {
            "get": {
                "tags": ["Prestamos"],
                "summary": "Préstamos de un estudiante",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LoanList"}},
                    "404": {"description": "Sin préstamos", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/prestamos/export": {
            "get": {
                "tags": ["Prestamos"],
                "summary": "Exportar préstamos",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "estado", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Archivo", "schema": {"type": "file"}},
                    "400": {"description": "Formato o estado inválido", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/admin/sweeps": {
            "post": {
                "tags": ["Administracion"],
                "summary": "Ejecutar la revisión de vencimientos",
                "responses": {
                    "200": {"description": "Resumen", "schema": {"$ref": "#/definitions/SweepEnvelope"}},
                    "403": {"description": "Rol insuficiente", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "Revisión en curso", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        }
    },
    "definitions": {
        "Loan": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "idEstudiante": {"type": "string"},
                "idLibro": {"type": "string"},
                "fechaPrestamo": {"type": "string", "format": "date-time"},
                "fechaDevolucion": {"type": "string", "format": "date-time"},
                "estado": {"type": "string", "enum": ["Prestado", "Vencido", "Devuelto"]},
                "observaciones": {"type": "string"},
                "historialEstado": {"type": "string"},
                "creadoPor": {"type": "string"},
                "fechaCreacion": {"type": "string", "format": "date-time"},
                "fechaActualizacion": {"type": "string", "format": "date-time"}
            }
        },
        "CreateLoanRequest": {
            "type": "object",
            "required": ["idEstudiante", "idLibro", "estado"],
            "properties": {
                "idEstudiante": {"type": "string", "example": "est-1024"},
                "idLibro": {"type": "string", "example": "lib-0042"},
                "fechaDevolucion": {"type": "string", "example": "2024-11-25"},
                "estado": {"type": "string", "example": "Prestado"},
                "observaciones": {"type": "string"},
                "historialEstado": {"type": "string"},
                "creadoPor": {"type": "string"}
            }
        },
        "LoanPatch": {
            "type": "object",
            "properties": {
                "observaciones": {"type": "string"},
                "estado": {"type": "string"},
                "fechaDevolucion": {"type": "string"},
                "historialEstado": {"type": "string"}
            }
        },
        "ReturnLoanRequest": {
            "type": "object",
            "properties": {
                "historialEstado": {"type": "string", "example": "Libro en buen estado"}
            }
        },
        "LoanEnvelope": {
            "type": "object",
            "properties": {
                "prestamo": {"$ref": "#/definitions/Loan"}
            }
        },
        "LoanList": {
            "type": "object",
            "properties": {
                "prestamos": {"type": "array", "items": {"$ref": "#/definitions/Loan"}}
            }
        },
        "SweepEnvelope": {
            "type": "object",
            "properties": {
                "sweep": {
                    "type": "object",
                    "properties": {
                        "revisados": {"type": "integer"},
                        "vencidos": {"type": "integer"},
                        "omitidos": {"type": "integer"},
                        "fallidos": {"type": "integer"},
                        "inicio": {"type": "string", "format": "date-time"},
                        "fin": {"type": "string", "format": "date-time"}
                    }
                }
            }
        },
        "Error": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
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
