package model

type Medication struct {
	Base
	Name         string `db:"name" json:"name"`
	GenericName  string `db:"generic_name" json:"generic_name,omitempty"`
	Manufacturer string `db:"manufacturer" json:"manufacturer,omitempty"`
	Form         string `db:"form" json:"form,omitempty"`
	Strength     string `db:"strength" json:"strength,omitempty"`
}

type CreateMedicationRequest struct {
	Name         string `json:"name" binding:"required,max=200"`
	GenericName  string `json:"generic_name" binding:"max=200"`
	Manufacturer string `json:"manufacturer" binding:"max=200"`
	Form         string `json:"form" binding:"max=50"`
	Strength     string `json:"strength" binding:"max=50"`
}
