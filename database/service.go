package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"citifix/config"
	"citifix/models"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

const defaultListLimit = 200

// Service owns the complaint and user records. All mutations on a single
// complaint are serialized through transactions on the shared database, so
// the guarantees hold across service instances, not just in-process.
type Service struct {
	db         *sql.DB
	categorize func(title, description string) string
}

// New opens a connection pool and returns a Service. The categorize
// function is injected so the store stays decoupled from the classifier.
func New(cfg *config.Config, categorize func(title, description string) string) (*Service, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Infof("Database connected to %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)

	return &Service{db: db, categorize: categorize}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB, categorize func(title, description string) string) *Service {
	return &Service{db: db, categorize: categorize}
}

// Close closes the underlying connection pool.
func (s *Service) Close() error {
	return s.db.Close()
}

// CreateComplaint validates the request, assigns id/category/defaults and
// inserts the record. The reporter's identity comes from the caller, not
// the payload.
func (s *Service) CreateComplaint(ctx context.Context, req *models.CreateComplaintRequest, userID, userName string) (*models.Complaint, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}
	if req.Location.Latitude == 0 && req.Location.Longitude == 0 {
		return nil, fmt.Errorf("%w: location is required", ErrValidation)
	}

	c := &models.Complaint{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Status:      models.StatusOpen,
		Location:    req.Location,
		Address:     req.Address,
		City:        req.City,
		Image:       req.Image,
		UserID:      userID,
		UserName:    userName,
		CreatedAt:   time.Now().UTC(),
	}
	if c.Category == "" {
		c.Category = s.categorize(req.Title, req.Description)
	}

	_, err := s.db.ExecContext(ctx, `INSERT
	  INTO complaints (id, title, description, category, status, latitude, longitude, address, city, image, user_id, user_name, created_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Description, c.Category, c.Status,
		c.Location.Latitude, c.Location.Longitude, c.Address, c.City, c.Image,
		c.UserID, c.UserName, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert complaint: %w", err)
	}

	return c, nil
}

const complaintColumns = `id, title, description, category, assigned_department, status,
	latitude, longitude, address, city, image, votes, escalated, escalated_at,
	user_id, user_name, created_at`

func scanComplaint(row interface{ Scan(...any) error }) (*models.Complaint, error) {
	var (
		c           models.Complaint
		dept        sql.NullString
		address     sql.NullString
		city        sql.NullString
		image       sql.NullString
		escalatedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &dept, &c.Status,
		&c.Location.Latitude, &c.Location.Longitude, &address, &city, &image,
		&c.Votes, &c.Escalated, &escalatedAt, &c.UserID, &c.UserName, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.AssignedDepartment = dept.String
	c.Address = address.String
	c.City = city.String
	c.Image = image.String
	if escalatedAt.Valid {
		c.EscalatedAt = escalatedAt.Time
	}
	return &c, nil
}

// GetComplaint returns a single complaint or ErrNotFound.
func (s *Service) GetComplaint(ctx context.Context, id string) (*models.Complaint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+complaintColumns+` FROM complaints WHERE id = ?`, id)
	c, err := scanComplaint(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}
	return c, nil
}

// ListComplaints returns complaints matching the filter, newest first
// unless vote ordering is requested.
func (s *Service) ListComplaints(ctx context.Context, filter *models.ComplaintFilter) ([]*models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints`
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		conds = append(conds, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if filter.SortByVotes {
		query += " ORDER BY votes DESC, created_at DESC"
	} else {
		query += " ORDER BY created_at DESC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Complaint, 0)
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating complaints: %w", err)
	}
	return result, nil
}

// RecordVote adds userID to the complaint's voter set and increments the
// vote counter in one transaction, so |votedBy| == votes holds even under
// concurrent voters. Returns ErrAlreadyVoted without any state change when
// the user has voted before.
func (s *Service) RecordVote(ctx context.Context, id, userID string) (*models.Complaint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin vote transaction: %w", err)
	}
	defer tx.Rollback()

	// The row lock taken here serializes concurrent votes and status
	// updates on the same complaint.
	result, err := tx.ExecContext(ctx,
		`UPDATE complaints SET votes = votes + 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to increment votes: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, ErrNotFound
	}

	result, err = tx.ExecContext(ctx,
		`INSERT IGNORE INTO complaint_votes (complaint_id, user_id) VALUES (?, ?)`,
		id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to record voter: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// Duplicate voter. Rollback undoes the increment.
		return nil, ErrAlreadyVoted
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+complaintColumns+` FROM complaints WHERE id = ?`, id)
	c, err := scanComplaint(row)
	if err != nil {
		return nil, fmt.Errorf("failed to read complaint after vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}
	return c, nil
}

// MarkEscalated flips the escalated flag exactly once. The conditional
// update is the compare-and-set that decides which of several concurrent
// threshold crossers owns the external notification.
func (s *Service) MarkEscalated(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE complaints SET escalated = TRUE, escalated_at = NOW() WHERE id = ? AND escalated = FALSE`,
		id)
	if err != nil {
		return false, fmt.Errorf("failed to mark complaint escalated: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get escalation update status: %w", err)
	}
	return rows == 1, nil
}

// UpdateStatus applies a status change and returns the prior status along
// with the updated record. Transitions out of resolved are rejected here,
// at the storage layer, so no caller can reopen a resolved complaint.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (prior string, updated *models.Complaint, err error) {
	switch status {
	case models.StatusOpen, models.StatusAssigned, models.StatusResolved:
	default:
		return "", nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to begin status transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`SELECT status FROM complaints WHERE id = ? FOR UPDATE`, id).Scan(&prior)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil, ErrNotFound
		}
		return "", nil, fmt.Errorf("failed to read complaint status: %w", err)
	}

	if prior == models.StatusResolved && status != models.StatusResolved {
		return "", nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prior, status)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE complaints SET status = ? WHERE id = ?`, status, id); err != nil {
		return "", nil, fmt.Errorf("failed to update status: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+complaintColumns+` FROM complaints WHERE id = ?`, id)
	updated, err = scanComplaint(row)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read complaint after status update: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", nil, fmt.Errorf("failed to commit status update: %w", err)
	}
	return prior, updated, nil
}

// AssignDepartment routes a complaint to a department and moves it to
// assigned. Re-assignment of an already assigned complaint is allowed.
func (s *Service) AssignDepartment(ctx context.Context, id, department string) (*models.Complaint, error) {
	if strings.TrimSpace(department) == "" {
		return nil, fmt.Errorf("%w: department is required", ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin assign transaction: %w", err)
	}
	defer tx.Rollback()

	var prior string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM complaints WHERE id = ? FOR UPDATE`, id).Scan(&prior)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read complaint status: %w", err)
	}
	if prior == models.StatusResolved {
		return nil, fmt.Errorf("%w: cannot assign a resolved complaint", ErrInvalidTransition)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE complaints SET assigned_department = ?, status = ? WHERE id = ?`,
		department, models.StatusAssigned, id); err != nil {
		return nil, fmt.Errorf("failed to assign department: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+complaintColumns+` FROM complaints WHERE id = ?`, id)
	updated, err := scanComplaint(row)
	if err != nil {
		return nil, fmt.Errorf("failed to read complaint after assignment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit assignment: %w", err)
	}
	return updated, nil
}

// StatusCounts returns the number of complaints per status.
func (s *Service) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) AS count FROM complaints GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count complaints by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}
	return counts, nil
}

// PinsInViewport returns the map pins for complaints inside the bounding box.
func (s *Service) PinsInViewport(ctx context.Context, vp *models.ViewPort) ([]models.MapPin, error) {
	rows, err := s.db.QueryContext(ctx, `
	  SELECT id, latitude, longitude, status
	  FROM complaints
	  WHERE latitude > ? AND longitude > ?
	    AND latitude <= ? AND longitude <= ?
	`, vp.LatMin, vp.LonMin, vp.LatMax, vp.LonMax)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaints in viewport: %w", err)
	}
	defer rows.Close()

	pins := make([]models.MapPin, 0, 100)
	for rows.Next() {
		var pin models.MapPin
		if err := rows.Scan(&pin.ComplaintID, &pin.Latitude, &pin.Longitude, &pin.Status); err != nil {
			log.Errorf("Cannot scan a map pin row: %v", err)
			continue
		}
		pin.Count = 1
		pins = append(pins, pin)
	}
	return pins, nil
}
