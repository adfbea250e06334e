package entity

import "time"

// Roles válidos para User.
const (
	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"
	RoleAssistant  = "assistant"
)

// User representa un usuario del sistema (pertenece a un Establishment).
type User struct {
	ID              string
	EstablishmentID string
	Email           string
	PasswordHash    string // hash bcrypt, nunca en claro después de persistir
	Name            string
	Role            string // admin, pharmacist, assistant
	Status          string // active, inactive, suspended
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
