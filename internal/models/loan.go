package models

import "time"

// LoanStatus enumerates the lifecycle states of a loan.
type LoanStatus string

const (
	// LoanStatusActive marks a loan whose book is still with the student.
	LoanStatusActive LoanStatus = "Prestado"
	// LoanStatusOverdue is set by the sweeper once the due date plus grace has passed.
	LoanStatusOverdue LoanStatus = "Vencido"
	// LoanStatusReturned is set when the book comes back.
	LoanStatusReturned LoanStatus = "Devuelto"
)

// LoanStatuses lists every accepted status in lifecycle order.
var LoanStatuses = []LoanStatus{LoanStatusActive, LoanStatusOverdue, LoanStatusReturned}

// Valid reports whether the status belongs to the closed set.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusActive, LoanStatusOverdue, LoanStatusReturned:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave the status.
func (s LoanStatus) Terminal() bool {
	return s == LoanStatusOverdue || s == LoanStatusReturned
}

// Wire names of the loan attributes accepted in a partial update.
const (
	LoanFieldNotes         = "observaciones"
	LoanFieldStatus        = "estado"
	LoanFieldReturnDate    = "fechaDevolucion"
	LoanFieldStatusHistory = "historialEstado"
)

// Loan records a single book lent to a student.
type Loan struct {
	ID            string     `db:"id" json:"id"`
	StudentID     string     `db:"student_id" json:"idEstudiante" validate:"required,max=64"`
	BookID        string     `db:"book_id" json:"idLibro" validate:"required,max=64"`
	LoanDate      time.Time  `db:"loan_date" json:"fechaPrestamo"`
	ReturnDate    *time.Time `db:"return_date" json:"fechaDevolucion"`
	Status        LoanStatus `db:"status" json:"estado"`
	Notes         string     `db:"notes" json:"observaciones" validate:"max=500"`
	StatusHistory string     `db:"status_history" json:"historialEstado" validate:"max=500"`
	CreatedBy     string     `db:"created_by" json:"creadoPor" validate:"required,max=64"`
	CreatedAt     time.Time  `db:"created_at" json:"fechaCreacion"`
	UpdatedAt     time.Time  `db:"updated_at" json:"fechaActualizacion"`
}

// LoanExpiredNotice carries what a student needs to know about an overdue loan.
type LoanExpiredNotice struct {
	LoanID    string     `json:"idPrestamo"`
	StudentID string     `json:"idEstudiante"`
	BookID    string     `json:"idLibro"`
	LoanDate  time.Time  `json:"fechaPrestamo"`
	DueDate   *time.Time `json:"fechaDevolucion"`
}

// NewLoanExpiredNotice derives the notice payload from a loan.
func NewLoanExpiredNotice(loan Loan) LoanExpiredNotice {
	return LoanExpiredNotice{
		LoanID:    loan.ID,
		StudentID: loan.StudentID,
		BookID:    loan.BookID,
		LoanDate:  loan.LoanDate,
		DueDate:   loan.ReturnDate,
	}
}

// SweepReport summarises one overdue sweep.
type SweepReport struct {
	Scanned    int           `json:"revisados"`
	Expired    int           `json:"vencidos"`
	Skipped    int           `json:"omitidos"`
	Failed     int           `json:"fallidos"`
	StartedAt  time.Time     `json:"inicio"`
	FinishedAt time.Time     `json:"fin"`
	Duration   time.Duration `json:"-"`
}
