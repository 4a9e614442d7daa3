// Package sqlite provides a SQLite-backed storage.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/isdelr/lms-be/internal/database"
	"github.com/isdelr/lms-be/internal/models"
	"github.com/isdelr/lms-be/internal/storage"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists LMS records in SQLite.
type Store struct {
	db *sql.DB
	// writeMu serializes every write so a capacity check and the roster
	// write it guards happen as one step.
	writeMu sync.Mutex
}

var _ storage.Store = (*Store)(nil)

// Open opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := database.New(path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const userColumns = `id, email, name, role, password_hash, created_at, updated_at, last_login`

const courseColumns = `id, title, description, category, instructor_id, capacity, start_date, end_date, status, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, string(user.Role), user.PasswordHash,
		toMillis(user.CreatedAt), toMillis(user.UpdatedAt), toMillis(user.LastLogin),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	return getUser(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return getUser(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	links, err := allEnrollments(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].EnrolledCourses = links.coursesOf(users[i].ID)
	}
	return users, nil
}

func (s *Store) CreateCourse(ctx context.Context, course models.Course) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (`+courseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		course.ID, course.Title, course.Description, string(course.Category), course.InstructorID,
		course.Capacity, toMillis(course.StartDate), toMillis(course.EndDate), string(course.Status),
		toMillis(course.CreatedAt), toMillis(course.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return storage.ErrNotFound
		}
		if isConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

func (s *Store) GetCourse(ctx context.Context, id string) (models.Course, error) {
	return getCourse(ctx, s.db, id)
}

func (s *Store) ListCourses(ctx context.Context) ([]models.Course, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	courses := []models.Course{}
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	links, err := allEnrollments(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		courses[i].EnrolledStudents = links.rosterOf(courses[i].ID)
	}
	return courses, nil
}

func (s *Store) CreateEvent(ctx context.Context, event models.Event) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, type, level, message, course_id, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Type, event.Level, event.Message, event.CourseID, event.UserID, toMillis(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns the newest events first. A non-positive limit returns all.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, level, message, course_id, user_id, created_at FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			event     models.Event
			courseID  sql.NullString
			userID    sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &courseID, &userID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if courseID.Valid {
			event.CourseID = &courseID.String
		}
		if userID.Valid {
			event.UserID = &userID.String
		}
		event.CreatedAt = fromMillis(createdAt)
		events = append(events, event)
	}
	return events, rows.Err()
}

// Update runs fn in a transaction while holding the store's write lock.
func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(&sqliteTx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) GetCourse(ctx context.Context, id string) (models.Course, error) {
	return getCourse(ctx, t.tx, id)
}

func (t *sqliteTx) GetUser(ctx context.Context, id string) (models.User, error) {
	return getUser(ctx, t.tx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (t *sqliteTx) UpdateUser(ctx context.Context, user models.User) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE users SET email = ?, name = ?, role = ?, password_hash = ?, updated_at = ?, last_login = ? WHERE id = ?`,
		user.Email, user.Name, string(user.Role), user.PasswordHash,
		toMillis(user.UpdatedAt), toMillis(user.LastLogin), user.ID,
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	return requireAffected(res)
}

func (t *sqliteTx) AddEnrollment(ctx context.Context, courseID, userID string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO enrollments (course_id, user_id, enrolled_at) VALUES (?, ?, ?)`,
		courseID, userID, toMillis(at),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return storage.ErrNotFound
		}
		if isConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

func (t *sqliteTx) RemoveEnrollment(ctx context.Context, courseID, userID string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM enrollments WHERE course_id = ? AND user_id = ?`, courseID, userID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return requireAffected(res)
}

func (t *sqliteTx) UpdateCourse(ctx context.Context, course models.Course) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE courses SET title = ?, description = ?, category = ?, instructor_id = ?, capacity = ?,
		 start_date = ?, end_date = ?, status = ?, updated_at = ? WHERE id = ?`,
		course.Title, course.Description, string(course.Category), course.InstructorID, course.Capacity,
		toMillis(course.StartDate), toMillis(course.EndDate), string(course.Status),
		toMillis(course.UpdatedAt), course.ID,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("update course: %w", err)
	}
	return requireAffected(res)
}

func (t *sqliteTx) DeleteCourse(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM enrollments WHERE course_id = ?`, id); err != nil {
		return fmt.Errorf("delete course enrollments: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return requireAffected(res)
}

func (t *sqliteTx) DeleteUser(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM enrollments WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("delete user enrollments: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyError(err) {
			return storage.ErrInUse
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(res)
}

func getUser(ctx context.Context, q queryer, query string, arg any) (models.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		return models.User{}, err
	}
	user.EnrolledCourses, err = selectIDs(ctx, q, `SELECT course_id FROM enrollments WHERE user_id = ? ORDER BY seq`, user.ID)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func getCourse(ctx context.Context, q queryer, id string) (models.Course, error) {
	course, err := scanCourse(q.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, id))
	if err != nil {
		return models.Course{}, err
	}
	course.EnrolledStudents, err = selectIDs(ctx, q, `SELECT user_id FROM enrollments WHERE course_id = ? ORDER BY seq`, id)
	if err != nil {
		return models.Course{}, err
	}
	return course, nil
}

// scanUser is a helper to scan a user from a row or rows object.
func scanUser(scanner interface{ Scan(...any) error }) (models.User, error) {
	var (
		user                            models.User
		role                            string
		passwordHash                    sql.NullString
		createdAt, updatedAt, lastLogin int64
	)
	err := scanner.Scan(&user.ID, &user.Email, &user.Name, &role, &passwordHash, &createdAt, &updatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.Role = models.Role(role)
	user.PasswordHash = passwordHash.String
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	user.LastLogin = fromMillis(lastLogin)
	user.EnrolledCourses = []string{}
	return user, nil
}

// scanCourse is a helper to scan a course from a row or rows object.
func scanCourse(scanner interface{ Scan(...any) error }) (models.Course, error) {
	var (
		course                                   models.Course
		category, status                         string
		startDate, endDate, createdAt, updatedAt int64
	)
	err := scanner.Scan(
		&course.ID, &course.Title, &course.Description, &category, &course.InstructorID,
		&course.Capacity, &startDate, &endDate, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Course{}, storage.ErrNotFound
		}
		return models.Course{}, fmt.Errorf("scan course: %w", err)
	}
	course.Category = models.Category(category)
	course.Status = models.CourseStatus(status)
	course.StartDate = fromMillis(startDate)
	course.EndDate = fromMillis(endDate)
	course.CreatedAt = fromMillis(createdAt)
	course.UpdatedAt = fromMillis(updatedAt)
	course.EnrolledStudents = []string{}
	return course, nil
}

func selectIDs(ctx context.Context, q queryer, query string, arg any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type enrollmentIndex struct {
	byCourse map[string][]string
	byUser   map[string][]string
}

func (idx enrollmentIndex) rosterOf(courseID string) []string {
	if ids, ok := idx.byCourse[courseID]; ok {
		return ids
	}
	return []string{}
}

func (idx enrollmentIndex) coursesOf(userID string) []string {
	if ids, ok := idx.byUser[userID]; ok {
		return ids
	}
	return []string{}
}

// allEnrollments loads the whole join table once so listings avoid a query per record.
func allEnrollments(ctx context.Context, q queryer) (enrollmentIndex, error) {
	idx := enrollmentIndex{byCourse: map[string][]string{}, byUser: map[string][]string{}}
	rows, err := q.QueryContext(ctx, `SELECT course_id, user_id FROM enrollments ORDER BY seq`)
	if err != nil {
		return idx, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var courseID, userID string
		if err := rows.Scan(&courseID, &userID); err != nil {
			return idx, fmt.Errorf("scan enrollment: %w", err)
		}
		idx.byCourse[courseID] = append(idx.byCourse[courseID], userID)
		idx.byUser[userID] = append(idx.byUser[userID], courseID)
	}
	return idx, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyError(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}
