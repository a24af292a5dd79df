package models

import "time"

// Complaint represents a single deduplicated complaint record. Repeated
// submissions for the same (product_id, reporter) pair land on one row
// and bump ReportCount.
type Complaint struct {
	ID          string    `json:"id" db:"id"`
	ProductID   string    `json:"product_id" db:"product_id"`
	Content     string    `json:"content" db:"content"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	ModifiedAt  time.Time `json:"-" db:"modified_at"`
	Reporter    string    `json:"reporter" db:"reporter"`
	Country     string    `json:"country" db:"country"`
	ReportCount int       `json:"report_count" db:"report_count"`
}

// CreateComplaintRequest is the inbound submission payload. Country is never
// accepted from the client; it is derived from the caller's network address.
type CreateComplaintRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
	Reporter  string `json:"reporter" binding:"required"`
}

// UpdateComplaintRequest carries the only field mutable after creation.
type UpdateComplaintRequest struct {
	Content string `json:"content"`
}

// Complaint lifecycle event types, also used as AMQP routing keys.
const (
	EventComplaintCreated     = "complaint.created"
	EventComplaintIncremented = "complaint.incremented"
)

// ComplaintEvent is published to RabbitMQ after a successful write commit.
type ComplaintEvent struct {
	Type      string    `json:"type"`
	Complaint Complaint `json:"complaint"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse represents a success message response
type MessageResponse struct {
	Message string `json:"message"`
}
