package domain

// UserDefinition is a sample user provisioned by a load.
type UserDefinition struct {
	Name      string `json:"name" yaml:"name"`
	Email     string `json:"email" yaml:"email"`
	Password  string `json:"password,omitempty" yaml:"password"`
	SISUserID string `json:"sis_user_id,omitempty" yaml:"sis_user_id"`
	Avatar    string `json:"avatar,omitempty" yaml:"avatar"`
}
