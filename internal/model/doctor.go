package model

type Doctor struct {
	Base
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Email     string `db:"email" json:"email"`
	Phone     string `db:"phone" json:"phone,omitempty"`
	Specialty string `db:"specialty" json:"specialty"`
	LicenseNo string `db:"license_no" json:"license_no,omitempty"`
}

type CreateDoctorRequest struct {
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"max=30"`
	Specialty string `json:"specialty" binding:"required,max=100"`
	LicenseNo string `json:"license_no" binding:"max=50"`
}

type UpdateDoctorRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,max=100"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Phone     *string `json:"phone" binding:"omitempty,max=30"`
	Specialty *string `json:"specialty" binding:"omitempty,max=100"`
}
