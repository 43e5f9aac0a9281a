package customerdb

import (
	"strings"
	"time"
)

// Customer account statuses.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Subscription tiers.
const (
	TierStandard   = "standard"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// Ticket statuses.
const (
	TicketOpen       = "open"
	TicketInProgress = "in_progress"
	TicketResolved   = "resolved"
)

// Ticket priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Customer is a support account row.
type Customer struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Status      string    `gorm:"not null;default:active" json:"status"`
	Tier        string    `gorm:"not null;default:standard" json:"tier"`
	BillingInfo string    `json:"billing_info"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

// Ticket is a support ticket row. Tickets are append-only in the demo
// flows, so the row carries no updated_at.
type Ticket struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"not null;index" json:"customer_id"`
	Issue      string    `gorm:"not null" json:"issue"`
	Status     string    `gorm:"not null;default:open" json:"status"`
	Priority   string    `gorm:"not null;default:medium" json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Ticket) TableName() string {
	return "tickets"
}

// History bundles a customer with all their tickets.
type History struct {
	Customer Customer `json:"customer"`
	Tickets  []Ticket `json:"tickets"`
}

// NormalizeEnum lowercases and trims an enum value before validation.
func NormalizeEnum(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ValidCustomerStatus reports whether status is a known account status.
func ValidCustomerStatus(status string) bool {
	return status == StatusActive || status == StatusDisabled
}

// ValidTier reports whether tier is a known subscription tier.
func ValidTier(tier string) bool {
	return tier == TierStandard || tier == TierPremium || tier == TierEnterprise
}

// ValidTicketStatus reports whether status is a known ticket status.
func ValidTicketStatus(status string) bool {
	return status == TicketOpen || status == TicketInProgress || status == TicketResolved
}

// ValidPriority reports whether priority is a known ticket priority.
func ValidPriority(priority string) bool {
	return priority == PriorityLow || priority == PriorityMedium || priority == PriorityHigh
}
