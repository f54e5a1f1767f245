package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"canvas-load/internal/domain"
)

// User is an application user. Their stored Canvas tokens authorize loads.
type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name  string    `gorm:"column:name" json:"name"`
	Email string    `gorm:"column:email;uniqueIndex" json:"email"`

	Authentications []Authentication `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"authentications,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Authentication is an access token for one provider (Canvas domain).
type Authentication struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_auth_user_provider" json:"user_id"`
	Provider    string    `gorm:"column:provider;not null;default:canvas" json:"provider"`
	ProviderURL string    `gorm:"column:provider_url;not null;index:idx_auth_user_provider" json:"provider_url"`
	Token       string    `gorm:"column:token;not null" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Load is a batch of course definitions, users and content to push into one
// Canvas instance on behalf of User.
type Load struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`

	CanvasDomain        string `gorm:"column:canvas_domain;not null" json:"canvas_domain"`
	SISID               string `gorm:"column:sis_id" json:"sis_id"`
	Suffix              string `gorm:"column:suffix" json:"suffix"`
	SubAccountName      string `gorm:"column:sub_account_name" json:"sub_account_name"`
	AlwaysCreateCourses bool   `gorm:"column:always_create_courses;not null;default:false" json:"always_create_courses"`
	SetupWelcome        bool   `gorm:"column:setup_welcome;not null;default:false" json:"setup_welcome"`

	Users    datatypes.JSON `gorm:"column:users" json:"users"`         // []domain.UserDefinition
	LTITools datatypes.JSON `gorm:"column:lti_tools" json:"lti_tools"` // account level []domain.LTIToolDefinition

	Courses []Course `gorm:"foreignKey:LoadID;constraint:OnDelete:CASCADE" json:"courses,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Course is one course definition of a load plus the Canvas ids recorded
// once it has been provisioned.
type Course struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LoadID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"load_id"`
	Content    datatypes.JSON `gorm:"column:content" json:"content"` // domain.CourseDefinition
	IsSelected bool           `gorm:"column:is_selected;not null" json:"is_selected"`

	CanvasCourseID  *int64 `gorm:"column:canvas_course_id" json:"canvas_course_id,omitempty"`
	CanvasAccountID *int64 `gorm:"column:canvas_account_id" json:"canvas_account_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return nil
}

func (a *Authentication) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (l *Load) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// UserDefinitions decodes the sample users of the load.
func (l *Load) UserDefinitions() ([]domain.UserDefinition, error) {
	var out []domain.UserDefinition
	if err := decodeJSON(l.Users, &out); err != nil {
		return nil, fmt.Errorf("load %s: users: %w", l.ID, err)
	}
	return out, nil
}

// AccountLTITools decodes the tools to install on the load's sub-account.
func (l *Load) AccountLTITools() ([]domain.LTIToolDefinition, error) {
	var out []domain.LTIToolDefinition
	if err := decodeJSON(l.LTITools, &out); err != nil {
		return nil, fmt.Errorf("load %s: lti tools: %w", l.ID, err)
	}
	return out, nil
}

// Parsed decodes the course definition held in Content.
func (c *Course) Parsed() (domain.CourseDefinition, error) {
	var def domain.CourseDefinition
	if err := decodeJSON(c.Content, &def); err != nil {
		return def, fmt.Errorf("course %s: content: %w", c.ID, err)
	}
	return def, nil
}

func (c *Course) CourseCode() string {
	def, _ := c.Parsed()
	return def.CourseCode
}

func decodeJSON(raw datatypes.JSON, out any) error {
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// EncodeJSON marshals v for a JSON column.
func EncodeJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
