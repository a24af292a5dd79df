package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"complaint-service/metrics"
	"complaint-service/models"

	"github.com/apex/log"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

const (
	// DefaultPageSize is used when a listing request does not specify one.
	DefaultPageSize = 10
	// MaxPageSize bounds a single listing page.
	MaxPageSize = 100

	// maxLockConflictRetries bounds how often a write transaction aborted by
	// InnoDB (deadlock or lock wait timeout) is replayed from the top.
	maxLockConflictRetries = 3

	complaintColumns = "id, product_id, reporter, content, country, report_count, created_at, modified_at"
)

// EventPublisher publishes complaint lifecycle events after commit. A nil
// publisher disables publishing.
type EventPublisher interface {
	PublishWithRoutingKey(routingKey string, message interface{}) error
}

// ComplaintService handles all complaint-related database operations. Every
// mutation goes through a SELECT ... FOR UPDATE inside an explicit
// transaction, so concurrent duplicate submissions serialize on the row
// instead of losing increments.
type ComplaintService struct {
	db        *sql.DB
	publisher EventPublisher
}

// NewComplaintService creates a new complaint service instance
func NewComplaintService(db *sql.DB, publisher EventPublisher) *ComplaintService {
	return &ComplaintService{
		db:        db,
		publisher: publisher,
	}
}

// AddComplaint creates a complaint for a new (product_id, reporter) pair or
// increments the report counter of the existing one. The country of an
// existing complaint is never overwritten by a duplicate submission.
//
// A transaction aborted by InnoDB over a lock conflict is replayed from the
// top: when several creators race the same fresh pair, the INSERT losers hold
// shared locks on the unique index entry from the duplicate-key error, and
// their locking re-reads can deadlock against each other. MySQL kills one
// with error 1213; that submission must be retried, not dropped, or its
// increment would be lost.
func (s *ComplaintService) AddComplaint(ctx context.Context, req *models.CreateComplaintRequest, country string) (*models.Complaint, error) {
	var complaint *models.Complaint
	var eventType string
	var err error

	for attempt := 1; ; attempt++ {
		complaint, eventType, err = s.addComplaintTx(ctx, req, country)
		if err == nil || !isLockConflict(err) || attempt >= maxLockConflictRetries {
			break
		}
		log.Warnf("Lock conflict adding complaint for product %s by %s, retrying: %v",
			req.ProductID, req.Reporter, err)
	}
	if err != nil {
		metrics.ComplaintWritesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	if eventType == models.EventComplaintCreated {
		log.Infof("Created complaint %s for product %s by %s", complaint.ID, complaint.ProductID, complaint.Reporter)
		metrics.ComplaintWritesTotal.WithLabelValues("created").Inc()
	} else {
		log.Infof("Deduplicated complaint %s for product %s by %s, report count %d",
			complaint.ID, complaint.ProductID, complaint.Reporter, complaint.ReportCount)
		metrics.ComplaintWritesTotal.WithLabelValues("deduplicated").Inc()
	}
	s.publishEvent(eventType, complaint)
	return complaint, nil
}

// addComplaintTx runs one create-or-increment attempt in its own transaction
// and reports which lifecycle event the outcome corresponds to.
func (s *ComplaintService) addComplaintTx(ctx context.Context, req *models.CreateComplaintRequest, country string) (*models.Complaint, string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", &models.CreationFailedError{Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM complaints WHERE product_id = ? AND reporter = ?",
		req.ProductID, req.Reporter).Scan(&id)

	if err == sql.ErrNoRows {
		complaint, insertErr := s.insertComplaint(ctx, tx, req, country)
		if insertErr == nil {
			if err := tx.Commit(); err != nil {
				return nil, "", &models.CreationFailedError{Err: fmt.Errorf("failed to commit transaction: %w", err)}
			}
			return complaint, models.EventComplaintCreated, nil
		}
		if !isDuplicateKey(insertErr) {
			return nil, "", &models.CreationFailedError{Err: insertErr}
		}
		// Lost the create race: another transaction inserted the row between
		// our natural-key read and the INSERT. The plain read above used the
		// snapshot taken before the winner committed, so re-read with a
		// locking read, which always sees the latest committed row.
		err = tx.QueryRowContext(ctx,
			"SELECT id FROM complaints WHERE product_id = ? AND reporter = ? FOR UPDATE",
			req.ProductID, req.Reporter).Scan(&id)
		if err != nil {
			return nil, "", &models.CreationFailedError{Err: fmt.Errorf("failed to re-read complaint after duplicate key: %w", err)}
		}
	} else if err != nil {
		return nil, "", &models.CreationFailedError{Err: fmt.Errorf("failed to look up complaint: %w", err)}
	}

	complaint, err := s.incrementLocked(ctx, tx, id)
	if err != nil {
		if errors.Is(err, models.ErrComplaintNotFound) {
			return nil, "", err
		}
		return nil, "", &models.CreationFailedError{Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, "", &models.CreationFailedError{Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return complaint, models.EventComplaintIncremented, nil
}

// insertComplaint persists a fresh complaint with report_count = 1.
func (s *ComplaintService) insertComplaint(ctx context.Context, tx *sql.Tx, req *models.CreateComplaintRequest, country string) (*models.Complaint, error) {
	now := time.Now().UTC()
	complaint := &models.Complaint{
		ID:          uuid.NewString(),
		ProductID:   req.ProductID,
		Content:     req.Content,
		Reporter:    req.Reporter,
		Country:     country,
		ReportCount: 1,
		CreatedAt:   now,
		ModifiedAt:  now,
	}

	_, err := tx.ExecContext(ctx,
		"INSERT INTO complaints (id, product_id, reporter, content, country, report_count, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		complaint.ID, complaint.ProductID, complaint.Reporter, complaint.Content,
		complaint.Country, complaint.ReportCount, complaint.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert complaint: %w", err)
	}
	return complaint, nil
}

// incrementLocked re-reads the complaint under an exclusive row lock and bumps
// its counter. A not-found here means the row vanished between the natural-key
// lookup and the locked read; that propagates as ErrComplaintNotFound.
func (s *ComplaintService) incrementLocked(ctx context.Context, tx *sql.Tx, id string) (*models.Complaint, error) {
	complaint, err := scanComplaint(tx.QueryRowContext(ctx,
		"SELECT "+complaintColumns+" FROM complaints WHERE id = ? FOR UPDATE", id))
	if err == sql.ErrNoRows {
		return nil, models.ErrComplaintNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock complaint %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE complaints SET report_count = report_count + 1 WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("failed to increment report count for complaint %s: %w", id, err)
	}
	complaint.ReportCount++
	return complaint, nil
}

// GetComplaint retrieves a complaint by ID
func (s *ComplaintService) GetComplaint(ctx context.Context, id string) (*models.Complaint, error) {
	complaint, err := scanComplaint(s.db.QueryRowContext(ctx,
		"SELECT "+complaintColumns+" FROM complaints WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, models.ErrComplaintNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query complaint %s: %w", id, err)
	}
	return complaint, nil
}

// ListComplaints returns one page of complaints, most recently created first.
// An out-of-range page yields an empty slice.
func (s *ComplaintService) ListComplaints(ctx context.Context, page, size int) ([]models.Complaint, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+complaintColumns+" FROM complaints ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		size, page*size)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	defer rows.Close()

	complaints := []models.Complaint{}
	for rows.Next() {
		var c models.Complaint
		if err := rows.Scan(&c.ID, &c.ProductID, &c.Reporter, &c.Content, &c.Country,
			&c.ReportCount, &c.CreatedAt, &c.ModifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan complaint row: %w", err)
		}
		complaints = append(complaints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate complaint rows: %w", err)
	}
	return complaints, nil
}

// UpdateComplaint replaces the complaint content. An empty content is a no-op
// that returns the current record without issuing a write.
func (s *ComplaintService) UpdateComplaint(ctx context.Context, id, content string) (*models.Complaint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &models.UpdateFailedError{Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	complaint, err := scanComplaint(tx.QueryRowContext(ctx,
		"SELECT "+complaintColumns+" FROM complaints WHERE id = ? FOR UPDATE", id))
	if err == sql.ErrNoRows {
		return nil, models.ErrComplaintNotFound
	}
	if err != nil {
		return nil, &models.UpdateFailedError{Err: fmt.Errorf("failed to lock complaint %s: %w", id, err)}
	}

	if content != "" {
		if _, err := tx.ExecContext(ctx,
			"UPDATE complaints SET content = ? WHERE id = ?", content, id); err != nil {
			return nil, &models.UpdateFailedError{Err: fmt.Errorf("failed to update complaint %s: %w", id, err)}
		}
		complaint.Content = content
	}

	if err := tx.Commit(); err != nil {
		return nil, &models.UpdateFailedError{Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return complaint, nil
}

func (s *ComplaintService) publishEvent(eventType string, complaint *models.Complaint) {
	if s.publisher == nil {
		return
	}
	event := models.ComplaintEvent{
		Type:      eventType,
		Complaint: *complaint,
		Timestamp: time.Now().UTC(),
	}
	if err := s.publisher.PublishWithRoutingKey(eventType, event); err != nil {
		log.Errorf("Failed to publish %s event for complaint %s: %v", eventType, complaint.ID, err)
		metrics.EventPublishErrorTotal.Inc()
	}
}

func scanComplaint(row *sql.Row) (*models.Complaint, error) {
	var c models.Complaint
	err := row.Scan(&c.ID, &c.ProductID, &c.Reporter, &c.Content, &c.Country,
		&c.ReportCount, &c.CreatedAt, &c.ModifiedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// isLockConflict reports whether InnoDB aborted the transaction with a
// deadlock (1213) or lock wait timeout (1205). Both roll the transaction
// back, so the write is safe to replay from the top.
func isLockConflict(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && (mysqlErr.Number == 1213 || mysqlErr.Number == 1205)
}
