package model

import (
	"time"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Identity is the authenticated caller as seen by handlers.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"type"`
}

// Credential is the minimum the signin path needs from any role table.
type Credential struct {
	Email        string `db:"email"`
	Name         string `db:"name"`
	PasswordHash string `db:"password_hash"`
	Role         Role   `db:"role"`
	Approved     *bool  `db:"approved"`
}

type Patient struct {
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Verified     bool      `db:"verified" json:"verified"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Doctor struct {
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Phone        string    `db:"phone" json:"phone"`
	Country      string    `db:"country" json:"country"`
	City         string    `db:"city" json:"city"`
	Hospital     string    `db:"hospital" json:"hospital"`
	University   string    `db:"university" json:"university"`
	Approved     bool      `db:"approved" json:"approved"`
	ProfileImage *string   `db:"profile_image" json:"profile_image"`
	About        *string   `db:"about" json:"about"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Admin struct {
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DoctorFields are the profile fields collected at doctor signup.
type DoctorFields struct {
	Phone      string `db:"phone" json:"phone"`
	Country    string `db:"country" json:"country"`
	City       string `db:"city" json:"city"`
	Hospital   string `db:"hospital" json:"hospital"`
	University string `db:"university" json:"university"`
}

// PendingSignup holds a registration until its confirmation code is used.
type PendingSignup struct {
	Email            string    `db:"email"`
	Name             string    `db:"name"`
	PasswordHash     string    `db:"password_hash"`
	Role             Role      `db:"role"`
	ConfirmationCode string    `db:"confirmation_code"`
	Phone            *string   `db:"phone"`
	Country          *string   `db:"country"`
	City             *string   `db:"city"`
	Hospital         *string   `db:"hospital"`
	University       *string   `db:"university"`
	CreatedAt        time.Time `db:"created_at"`
}

// DoctorFields returns the doctor extras, empty strings where unset.
func (p *PendingSignup) DoctorFields() DoctorFields {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return DoctorFields{
		Phone:      deref(p.Phone),
		Country:    deref(p.Country),
		City:       deref(p.City),
		Hospital:   deref(p.Hospital),
		University: deref(p.University),
	}
}

// UserSummary is one row of the admin user listing.
type UserSummary struct {
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Role         Role    `json:"type"`
	Phone        string  `json:"phone,omitempty"`
	Country      string  `json:"country,omitempty"`
	City         string  `json:"city,omitempty"`
	Hospital     string  `json:"hospital,omitempty"`
	University   string  `json:"university,omitempty"`
	Approved     *bool   `json:"approved,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
	About        *string `json:"about,omitempty"`
}

// UserListing groups the admin user listing by role.
type UserListing struct {
	Patients []UserSummary `json:"patients"`
	Doctors  []UserSummary `json:"doctors"`
}

// DoctorProfileUpdate carries the optional fields of a profile update.
// Nil fields are left unchanged.
type DoctorProfileUpdate struct {
	Name         *string
	Phone        *string
	Country      *string
	City         *string
	Hospital     *string
	University   *string
	About        *string
	ProfileImage *string
}

func (u DoctorProfileUpdate) Empty() bool {
	return u.Name == nil && u.Phone == nil && u.Country == nil && u.City == nil &&
		u.Hospital == nil && u.University == nil && u.About == nil && u.ProfileImage == nil
}

// PublicDoctorProfile is what patients may see about an approved doctor.
type PublicDoctorProfile struct {
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Hospital     string  `json:"hospital"`
	University   string  `json:"university"`
	ProfileImage *string `json:"profile_image"`
	About        *string `json:"about"`
}
