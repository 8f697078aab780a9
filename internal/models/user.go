package models

import "time"

const (
	RoleGuest = "guest"
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	return r == RoleGuest || r == RoleUser || r == RoleAdmin
}

// User represents a row in the PostgreSQL users table.
type User struct {
	ID              string    `json:"id"`
	FirstName       string    `json:"firstname"`
	LastName        string    `json:"lastname"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	Password        string    `json:"-"` // never serialize
	Phone           string    `json:"phone"`
	ProfilePicURL   string    `json:"profilePicUrl"`
	Role            string    `json:"role"`
	IsBanned        bool      `json:"isBanned"`
	RefreshToken    string    `json:"-"`
	IsTermsAccepted bool      `json:"isTermsAccepted"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Summary is the public projection embedded in questions and answers.
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Username: u.Username, ProfilePicURL: u.ProfilePicURL}
}

// UserSummary is what other users get to see about an author.
type UserSummary struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	ProfilePicURL string `json:"profilePicUrl"`
}

// RegisterRequest is the body (JSON or multipart fields) of POST /users/register.
// Length limits follow the users table columns.
type RegisterRequest struct {
	FirstName       string `json:"firstname"       validate:"required,max=100"`
	LastName        string `json:"lastname"        validate:"required,max=100"`
	Username        string `json:"username"        validate:"required,max=50"`
	Email           string `json:"email"           validate:"required,email,max=255"`
	Password        string `json:"password"        validate:"required,max=72"`
	Phone           string `json:"phone"           validate:"required,max=32"`
	IsTermsAccepted bool   `json:"isTermsAccepted" validate:"required"`
}

// LoginRequest is the JSON body for POST /users/login. Either Username or
// Email identifies the account.
type LoginRequest struct {
	Username string `json:"username" validate:"required_without=Email,max=50"`
	Email    string `json:"email"    validate:"required_without=Username,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// RefreshRequest is the JSON body for POST /users/refresh-token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// UpdateProfileRequest is the JSON body for PATCH /users/me. Nil fields are
// left unchanged.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstname" validate:"omitnil,min=1,max=100"`
	LastName  *string `json:"lastname"  validate:"omitnil,min=1,max=100"`
	Phone     *string `json:"phone"     validate:"omitnil,min=1,max=32"`
}

// ChangePasswordRequest is the JSON body for POST /users/change-password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,max=72"`
}

// LoginResponse is the data of a successful login or refresh.
type LoginResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
