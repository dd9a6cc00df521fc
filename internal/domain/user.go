package domain

import "time"

// Roles de usuario en la plataforma.
const (
	RoleAdmin      = "admin"
	RoleProvider   = "prestador"
	RoleContractor = "contratante"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"nombre"`
	LastName     string    `json:"apellido"`
	Role         string    `json:"rol"`
	Phone        string    `json:"telefono,omitempty"`
	Location     string    `json:"ubicacion,omitempty"`
	Verified     bool      `json:"verificado"`
	FaceVerified bool      `json:"facial_verificado"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
