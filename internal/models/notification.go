package models

import "time"

// NotificationType identifies the loan event a notification describes.
type NotificationType string

const (
	NotificationLoanCreated  NotificationType = "PRESTAMO_CREADO"
	NotificationLoanExpired  NotificationType = "PRESTAMO_VENCIDO"
	NotificationLoanReturned NotificationType = "PRESTAMO_DEVUELTO"
)

// Notification is the message handed to the notification outbox.
type Notification struct {
	ID         string           `json:"id"`
	Type       NotificationType `json:"tipo"`
	LoanID     string           `json:"idPrestamo"`
	StudentID  string           `json:"idEstudiante"`
	BookID     string           `json:"idLibro"`
	LoanDate   time.Time        `json:"fechaPrestamo"`
	DueDate    *time.Time       `json:"fechaDevolucion,omitempty"`
	Note       string           `json:"observaciones,omitempty"`
	OccurredAt time.Time        `json:"fechaEvento"`
}
