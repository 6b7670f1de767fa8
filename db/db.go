// Package db provides PostgreSQL persistence for users and links.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/zombar/linkstash/models"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by
	// the requesting user. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint (duplicate email, duplicate (user_id, url) pair).
	ErrDuplicate = errors.New("duplicate")
)

// uniqueViolation is the PostgreSQL error code for constraint 23505.
const uniqueViolation = "23505"

// DB wraps the database connection and provides data access methods.
type DB struct {
	conn *sql.DB
}

// Config contains database configuration.
type Config struct {
	DSN string // PostgreSQL connection string
}

// New opens a connection pool, verifies it, and runs pending migrations.
func New(config Config) (*DB, error) {
	conn, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection for metrics collection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// isUniqueViolation reports whether err is a 23505 constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// CreateUser inserts a new user, assigning its id and timestamps.
// Returns ErrDuplicate when the email is already registered.
func (db *DB) CreateUser(user *models.User) error {
	user.ID = uuid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.Exec(`
		INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email. Returns ErrNotFound when absent.
func (db *DB) GetUserByEmail(email string) (*models.User, error) {
	return db.getUser("SELECT id, email, name, password_hash, created_at, updated_at FROM users WHERE email = $1", email)
}

// GetUserByID retrieves a user by id. Returns ErrNotFound when absent.
func (db *DB) GetUserByID(id string) (*models.User, error) {
	return db.getUser("SELECT id, email, name, password_hash, created_at, updated_at FROM users WHERE id = $1", id)
}

func (db *DB) getUser(query string, arg string) (*models.User, error) {
	var user models.User
	err := db.conn.QueryRow(query, arg).Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// CreateLink inserts a new link, assigning its id and timestamps. Returns
// ErrDuplicate when the user already saved this URL; the UNIQUE(user_id, url)
// constraint backstops the handler's pre-check so two concurrent saves of the
// same URL cannot both land.
func (db *DB) CreateLink(link *models.Link) error {
	link.ID = uuid.New().String()
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now
	if link.Tags == nil {
		link.Tags = []string{}
	}

	tagsJSON, err := json.Marshal(link.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO links (id, user_id, url, title, description, image, domain, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, link.ID, link.UserID, link.URL, link.Title, link.Description, link.Image,
		link.Domain, string(tagsJSON), link.CreatedAt, link.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

// LinkExists reports whether the user already saved this exact URL.
func (db *DB) LinkExists(userID, url string) (bool, error) {
	var exists bool
	err := db.conn.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM links WHERE user_id = $1 AND url = $2)",
		userID, url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check link existence: %w", err)
	}
	return exists, nil
}

const linkColumns = "id, user_id, url, title, description, image, domain, tags, created_at, updated_at"

// GetLinkByID retrieves a link owned by userID. Returns ErrNotFound when the
// link does not exist or belongs to someone else.
func (db *DB) GetLinkByID(userID, id string) (*models.Link, error) {
	row := db.conn.QueryRow(
		"SELECT "+linkColumns+" FROM links WHERE id = $1 AND user_id = $2",
		id, userID,
	)
	link, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query link: %w", err)
	}
	return link, nil
}

// DeleteLink removes a link owned by userID. Returns ErrNotFound when the
// link does not exist or belongs to someone else.
func (db *DB) DeleteLink(userID, id string) error {
	result, err := db.conn.Exec("DELETE FROM links WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListLinks returns the user's links newest first.
func (db *DB) ListLinks(userID string, limit, offset int) ([]*models.Link, error) {
	rows, err := db.conn.Query(
		"SELECT "+linkColumns+" FROM links WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()
	return collectLinks(rows)
}

// CountLinks returns the user's total link count.
func (db *DB) CountLinks(userID string) (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM links WHERE user_id = $1", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

// CountAllLinks returns the total link count across all users, for health
// reporting.
func (db *DB) CountAllLinks() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM links").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

// searchWhere builds the WHERE clause shared by SearchLinks and
// CountSearchLinks. query matches as a case-insensitive substring over
// title, description, domain and url; tag filters on exact JSONB membership.
func searchWhere(userID, query, tag string) (string, []interface{}) {
	where := "user_id = $1"
	args := []interface{}{userID}

	if query != "" {
		args = append(args, "%"+query+"%")
		n := len(args)
		where += fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d OR domain ILIKE $%d OR url ILIKE $%d)", n, n, n, n)
	}
	if tag != "" {
		args = append(args, tag)
		where += fmt.Sprintf(" AND tags ? $%d", len(args))
	}
	return where, args
}

// SearchLinks returns matching links newest first.
func (db *DB) SearchLinks(userID, query, tag string, limit, offset int) ([]*models.Link, error) {
	where, args := searchWhere(userID, query, tag)
	args = append(args, limit, offset)
	stmt := fmt.Sprintf(
		"SELECT %s FROM links WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		linkColumns, where, len(args)-1, len(args),
	)

	rows, err := db.conn.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search links: %w", err)
	}
	defer rows.Close()
	return collectLinks(rows)
}

// CountSearchLinks returns the total match count for a search.
func (db *DB) CountSearchLinks(userID, query, tag string) (int, error) {
	where, args := searchWhere(userID, query, tag)
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM links WHERE "+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count search results: %w", err)
	}
	return count, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLink(s scanner) (*models.Link, error) {
	var (
		link     models.Link
		image    sql.NullString
		tagsJSON string
	)
	err := s.Scan(
		&link.ID, &link.UserID, &link.URL, &link.Title, &link.Description,
		&image, &link.Domain, &tagsJSON, &link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if image.Valid {
		link.Image = &image.String
	}

	link.Tags = []string{}
	if tagsJSON != "" && tagsJSON != "null" {
		if err := json.Unmarshal([]byte(tagsJSON), &link.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &link, nil
}

func collectLinks(rows *sql.Rows) ([]*models.Link, error) {
	var results []*models.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}
