package model

import "time"

// ClarificationNotice is an ad-hoc message from the expenditure authorizer to
// the fiscal of a contract.
type ClarificationNotice struct {
	ID         string     `json:"id"`
	ContractID string     `json:"contract_id"`
	FiscalType FiscalType `json:"fiscal_type"`
	Message    string     `json:"message"`
	SentBy     UserRef    `json:"sent_by"`
	Delivered  bool       `json:"delivered"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ContractUpdate describes a change the contract responsibles are notified about
type ContractUpdate struct {
	ContractNumber    string `json:"contract_number"`
	UpdateDescription string `json:"update_description"`
	ActionRequired    string `json:"action_required"`
	UpdateType        string `json:"update_type"`
}

// Delivery channels
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
)

// Delivery is the outcome of one notification attempt
type Delivery struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}
