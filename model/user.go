package model

import "time"

// Role is one of the five enumerated user roles
type Role string

const (
	RoleAdmin                 Role = "ADMINISTRADOR"
	RoleManager               Role = "GESTOR_CONTRATO"
	RoleFiscalAdministrative  Role = "FISCAL_ADMINISTRATIVO"
	RoleFiscalTechnical       Role = "FISCAL_TECNICO"
	RoleExpenditureAuthorizer Role = "ORDENADOR_DESPESAS"
)

var roleLabels = map[Role]string{
	RoleAdmin:                 "Administrador",
	RoleManager:               "Gestor de Contrato",
	RoleFiscalAdministrative:  "Fiscal Administrativo",
	RoleFiscalTechnical:       "Fiscal Técnico",
	RoleExpenditureAuthorizer: "Ordenador de Despesas",
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// Label returns the display name of the role
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

// FiscalType returns the checklist type a fiscal role verifies, or "" for
// non-fiscal roles.
func (r Role) FiscalType() FiscalType {
	switch r {
	case RoleFiscalAdministrative:
		return FiscalAdministrative
	case RoleFiscalTechnical:
		return FiscalTechnical
	}
	return ""
}

// User is an account of the system
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	WhatsApp     string     `json:"whatsapp,omitempty"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Ref returns the lightweight identity used in history and clarification rows
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserRef identifies the author of a history entry or clarification
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserStats summarises user accounts for the admin dashboard
type UserStats struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Inactive    int `json:"inactive"`
	ActiveToday int `json:"active_today"`
}

// ComputeUserStats derives account statistics. A user is active today when
// active and logged in since the start of the current day in now's location.
func ComputeUserStats(users []*User, now time.Time) UserStats {
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	stats := UserStats{Total: len(users)}
	for _, u := range users {
		if !u.IsActive {
			stats.Inactive++
			continue
		}
		stats.Active++
		if u.LastLogin != nil && !u.LastLogin.Before(startOfDay) {
			stats.ActiveToday++
		}
	}
	return stats
}
