package model

import "time"

type Patient struct {
	Base
	FirstName   string     `db:"first_name" json:"first_name"`
	LastName    string     `db:"last_name" json:"last_name"`
	Email       string     `db:"email" json:"email"`
	Phone       string     `db:"phone" json:"phone,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Address     string     `db:"address" json:"address,omitempty"`
}

type CreatePatientRequest struct {
	FirstName   string     `json:"first_name" binding:"required,max=100"`
	LastName    string     `json:"last_name" binding:"required,max=100"`
	Email       string     `json:"email" binding:"required,email"`
	Phone       string     `json:"phone" binding:"max=30"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Address     string     `json:"address" binding:"max=500"`
}

type UpdatePatientRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,max=100"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Phone     *string `json:"phone" binding:"omitempty,max=30"`
	Address   *string `json:"address" binding:"omitempty,max=500"`
}
