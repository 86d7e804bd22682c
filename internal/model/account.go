package model

import "time"

// Role is the kind of marketplace account.
type Role string

const (
	RoleClient  Role = "client"
	RoleCompany Role = "company"
	RoleAdmin   Role = "admin"
)

// Account is the directory entry for a marketplace user.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// IsCompany reports whether the account is an active installation company.
func (a Account) IsCompany() bool {
	return a.Active && a.Role == RoleCompany
}

// IsClient reports whether the account is an active client.
func (a Account) IsClient() bool {
	return a.Active && a.Role == RoleClient
}

// Opportunity is a client's quote request addressed to a company. The
// contact fields stay masked until the company unlocks it.
type Opportunity struct {
	ID         string    `json:"id"`
	CompanyID  string    `json:"company_id"`
	ClientID   string    `json:"client_id"`
	ClientName string    `json:"client_name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Location   string    `json:"location"`
	Message    string    `json:"message,omitempty"`
	Unlocked   bool      `json:"unlocked"`
	CreatedAt  time.Time `json:"created_at"`
}
