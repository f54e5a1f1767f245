package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"canvas-load/internal/domain"
)

// ErrNotFound is returned when a looked up record does not exist.
var ErrNotFound = errors.New("store: record not found")

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Store persists loads, their courses and the users owning them.
type Store struct {
	db *gorm.DB
}

// Open connects and migrates the schema.
func Open(driver Driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "canvas-load.db"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if dsn == "" {
			dsn = "host=localhost user=postgres dbname=canvas_load sslmode=disable"
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connecting to database: %w", err)
	}

	if err := db.AutoMigrate(&User{}, &Authentication{}, &Load{}, &Course{}); err != nil {
		return nil, fmt.Errorf("store: running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() {
	sqlDB, err := s.db.DB()
	if err != nil {
		log.Errorf("closing database: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Errorf("closing database: %v", err)
	}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("store: creating user: %w", err)
	}
	return nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, notFound(err, "store: user %s", email)
	}
	return &u, nil
}

// AddAuthentication stores (or replaces) the token a user holds for a Canvas domain.
func (s *Store) AddAuthentication(ctx context.Context, userID uuid.UUID, providerURL, token string) (*Authentication, error) {
	var a Authentication
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider_url = ?", userID, providerURL).
		First(&a).Error
	switch {
	case err == nil:
		a.Token = token
		if err := s.db.WithContext(ctx).Save(&a).Error; err != nil {
			return nil, fmt.Errorf("store: updating authentication: %w", err)
		}
		return &a, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		a = Authentication{UserID: userID, Provider: "canvas", ProviderURL: providerURL, Token: token}
		if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
			return nil, fmt.Errorf("store: creating authentication: %w", err)
		}
		return &a, nil
	default:
		return nil, fmt.Errorf("store: querying authentication: %w", err)
	}
}

// FindAuthentication returns the user's token for providerURL.
func (s *Store) FindAuthentication(ctx context.Context, userID uuid.UUID, providerURL string) (*Authentication, error) {
	var a Authentication
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider_url = ?", userID, providerURL).
		First(&a).Error
	if err != nil {
		return nil, notFound(err, "store: authentication for %s", providerURL)
	}
	return &a, nil
}

// CreateLoad saves a load and its courses. Courses that were not selected
// are dropped before saving.
func (s *Store) CreateLoad(ctx context.Context, l *Load) error {
	selected := l.Courses[:0]
	for _, c := range l.Courses {
		if c.IsSelected {
			selected = append(selected, c)
		}
	}
	l.Courses = selected

	if err := s.db.WithContext(ctx).Omit("User").Create(l).Error; err != nil {
		return fmt.Errorf("store: creating load: %w", err)
	}
	return nil
}

// GetLoad returns a load with its owner and courses.
func (s *Store) GetLoad(ctx context.Context, id uuid.UUID) (*Load, error) {
	var l Load
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Courses", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		First(&l, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "store: load %s", id)
	}
	return &l, nil
}

func (s *Store) ListLoads(ctx context.Context) ([]Load, error) {
	var loads []Load
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&loads).Error; err != nil {
		return nil, fmt.Errorf("store: listing loads: %w", err)
	}
	return loads, nil
}

// CreateCourse adds a selected course definition to a load.
func (s *Store) CreateCourse(ctx context.Context, loadID uuid.UUID, def domain.CourseDefinition) (*Course, error) {
	content, err := EncodeJSON(def)
	if err != nil {
		return nil, fmt.Errorf("store: encoding course: %w", err)
	}
	c := Course{LoadID: loadID, Content: content, IsSelected: true}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("store: creating course: %w", err)
	}
	return &c, nil
}

// UpdateCourseRemoteIDs records the Canvas course and account a course was created as.
func (s *Store) UpdateCourseRemoteIDs(ctx context.Context, c *Course, canvasCourseID, canvasAccountID int64) error {
	err := s.db.WithContext(ctx).Model(c).Updates(map[string]any{
		"canvas_course_id":  canvasCourseID,
		"canvas_account_id": canvasAccountID,
	}).Error
	if err != nil {
		return fmt.Errorf("store: updating course %s: %w", c.ID, err)
	}
	c.CanvasCourseID = &canvasCourseID
	c.CanvasAccountID = &canvasAccountID
	return nil
}
