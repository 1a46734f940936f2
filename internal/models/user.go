package models

import "time"

// DirectoryUser is a raw user record read from the directory service.
// Attributes missing on the entry are empty strings.
type DirectoryUser struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	EmployeeID string `json:"employeeID"`
	Department string `json:"department"`
}

// DefaultRole is stamped on every imported document.
const DefaultRole = "user"

// UserDocument is the normalized user record stored in the document database.
type UserDocument struct {
	Name       string    `bson:"name" json:"name"`
	Email      string    `bson:"email" json:"email"`
	EmployeeID string    `bson:"employeeID" json:"employeeID"`
	Department string    `bson:"department" json:"department"`
	Mobile     string    `bson:"mobile" json:"mobile"`
	Role       string    `bson:"role" json:"role"`
	Active     bool      `bson:"active" json:"active"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}
