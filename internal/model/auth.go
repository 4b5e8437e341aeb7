package model

import "errors"

// Auth errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type PatientSignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type DoctorSignupRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	Name       string `json:"name" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	Country    string `json:"country" binding:"required"`
	City       string `json:"city" binding:"required"`
	Hospital   string `json:"hospital" binding:"required"`
	University string `json:"university" binding:"required"`
}

type VerifyRequest struct {
	Email            string `json:"email" binding:"required,email"`
	ConfirmationCode string `json:"confirmation_code" binding:"required,confcode"`
}

type SigninRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ResendCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type SigninResponse struct {
	Token    string `json:"token"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Type     Role   `json:"type"`
	Approved *bool  `json:"approved,omitempty"`
}

// VerifyResult tells the caller whether an account was created or already
// existed.
type VerifyResult struct {
	Email           string `json:"email"`
	Role            Role   `json:"type"`
	AlreadyVerified bool   `json:"already_verified"`
}
