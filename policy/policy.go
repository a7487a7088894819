// Package policy maps {role, action, fiscal type} to an allow/deny decision.
// Every route consults Allow instead of re-deriving role checks.
package policy

import "github.com/licito/backend/model"

// Action is something a user attempts to do
type Action string

const (
	ManageUsers          Action = "users:manage"
	ManageContracts      Action = "contracts:manage"
	ViewContracts        Action = "contracts:view"
	ViewAllContracts     Action = "contracts:view_all"
	ViewChecklist        Action = "checklist:view"
	UpdateChecklist      Action = "checklist:update"
	RequestClarification Action = "clarification:request"
	AnswerClarification  Action = "clarification:answer"
	SendNotice           Action = "notice:send"
	NotifyResponsibles   Action = "notification:send"
	UseAssistant         Action = "assistant:use"
	ExportReport         Action = "report:export"
)

// typed actions are only meaningful together with a fiscal type
var typed = map[Action]bool{
	ViewChecklist:       true,
	UpdateChecklist:     true,
	AnswerClarification: true,
}

var grants = map[model.Role]map[Action]bool{
	model.RoleAdmin: {
		ManageUsers:      true,
		ManageContracts:  true,
		ViewContracts:    true,
		ViewAllContracts: true,
		ViewChecklist:    true,
	},
	model.RoleManager: {
		ManageContracts:    true,
		ViewContracts:      true,
		ViewAllContracts:   true,
		ViewChecklist:      true,
		NotifyResponsibles: true,
		UseAssistant:       true,
		ExportReport:       true,
	},
	model.RoleFiscalAdministrative: {
		ViewContracts:       true,
		ViewChecklist:       true,
		UpdateChecklist:     true,
		AnswerClarification: true,
		ExportReport:        true,
	},
	model.RoleFiscalTechnical: {
		ViewContracts:       true,
		ViewChecklist:       true,
		UpdateChecklist:     true,
		AnswerClarification: true,
		ExportReport:        true,
	},
	model.RoleExpenditureAuthorizer: {
		ViewContracts:        true,
		ViewAllContracts:     true,
		ViewChecklist:        true,
		RequestClarification: true,
		SendNotice:           true,
		ExportReport:         true,
	},
}

// Allow reports whether role may perform action. For checklist actions the
// fiscal type of the resource must be given; fiscal roles are confined to
// their own type. Pass "" for actions that do not depend on a type.
func Allow(role model.Role, action Action, t model.FiscalType) bool {
	if !grants[role][action] {
		return false
	}
	if !typed[action] {
		return true
	}
	own := role.FiscalType()
	if own == "" {
		return true
	}
	return t == own
}

// Permissions lists every action the role may perform regardless of type,
// in declaration order. The UI uses it to decide which screens to render.
func Permissions(role model.Role) []Action {
	all := []Action{
		ManageUsers, ManageContracts, ViewContracts, ViewAllContracts,
		ViewChecklist, UpdateChecklist, RequestClarification, AnswerClarification,
		SendNotice, NotifyResponsibles, UseAssistant, ExportReport,
	}
	var out []Action
	for _, a := range all {
		if grants[role][a] {
			out = append(out, a)
		}
	}
	return out
}
