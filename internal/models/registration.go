package models

import "time"

type Registration struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Language  string    `json:"language"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

type RegistrationRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Language string `json:"language" validate:"required,oneof=en he"`
}

type CreateRegistrationRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Language string `json:"language" validate:"required,oneof=en he"`
	Source   string `json:"source" validate:"omitempty,max=50"`
}

type RegistrationList struct {
	Registrations []Registration `json:"registrations"`
	Total         int            `json:"total"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
}
