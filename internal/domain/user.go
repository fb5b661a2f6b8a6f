package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that can own a subscription. StripeCustomerID is set
// the first time the user starts a checkout; the billing portal requires it.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Password         string    `json:"-"`
	Role             string    `json:"role"`
	StripeCustomerID *string   `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewUserID generates a new unique user ID.
func NewUserID() string {
	return uuid.New().String()
}

// LoginRequest is the input for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// LoginUser is the user fragment embedded in a login response.
type LoginUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

// JWTClaims are the claims extracted from a verified token.
type JWTClaims struct {
	Sub   string
	Email string
	Role  string
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}
