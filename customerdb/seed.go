package customerdb

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// seedCustomers returns the canonical demo accounts. IDs are explicit so
// the ticket rows can reference them regardless of autoincrement state.
func seedCustomers() []Customer {
	return []Customer{
		{ID: 1, Name: "Ashwin Ram", Email: "ashwinram232@gmail.com", Phone: "7738863498", Status: StatusActive, Tier: TierPremium, BillingInfo: "Visa ****1234"},
		{ID: 2, Name: "Nina Patel", Email: "nina.patel@domain.com", Phone: "7735550101", Status: StatusActive, Tier: TierStandard, BillingInfo: "Mastercard ****5678"},
		{ID: 3, Name: "Liam Johnson", Email: "liam.johnson@example.org", Phone: "7735550102", Status: StatusDisabled, Tier: TierEnterprise},
		{ID: 4, Name: "Olivia Smith", Email: "olivia.smith@company.com", Phone: "7735550103", Status: StatusActive, Tier: TierPremium, BillingInfo: "Visa ****9876"},
		{ID: 5, Name: "Ethan Brown", Email: "ethan.brown@workplace.net", Phone: "7735550104", Status: StatusActive, Tier: TierStandard, BillingInfo: "Amex ****4321"},
		{ID: 6, Name: "Sophia Davis", Email: "sophia.davis@tech.io", Phone: "7735550105", Status: StatusActive, Tier: TierStandard},
		{ID: 7, Name: "Mason Wilson", Email: "mason.wilson@enterprise.com", Phone: "7735550106", Status: StatusActive, Tier: TierEnterprise, BillingInfo: "Mastercard ****2468"},
		{ID: 8, Name: "Ava Martinez", Email: "ava.martinez@startup.org", Phone: "7735550107", Status: StatusDisabled, Tier: TierPremium},
		{ID: 9, Name: "Logan Garcia", Email: "logan.garcia@solutions.com", Phone: "7735550108", Status: StatusActive, Tier: TierStandard, BillingInfo: "Visa ****1357"},
		{ID: 10, Name: "Isabella Lee", Email: "isabella.lee@global.com", Phone: "7735550109", Status: StatusActive, Tier: TierEnterprise},
	}
}

// seedTickets returns the canonical demo tickets spread across the
// accounts with mixed status and priority.
func seedTickets() []Ticket {
	return []Ticket{
		{ID: 1, CustomerID: 1, Issue: "Cannot login to system", Status: TicketOpen, Priority: PriorityHigh},
		{ID: 2, CustomerID: 4, Issue: "Payment processing failed", Status: TicketInProgress, Priority: PriorityHigh},
		{ID: 3, CustomerID: 7, Issue: "Security breach reported", Status: TicketOpen, Priority: PriorityHigh},
		{ID: 4, CustomerID: 10, Issue: "Critical bug in dashboard", Status: TicketInProgress, Priority: PriorityHigh},
		{ID: 5, CustomerID: 5, Issue: "Data export not working", Status: TicketResolved, Priority: PriorityHigh},
		{ID: 6, CustomerID: 1, Issue: "Password reset not working", Status: TicketInProgress, Priority: PriorityMedium},
		{ID: 7, CustomerID: 2, Issue: "Profile photo not uploading", Status: TicketResolved, Priority: PriorityMedium},
		{ID: 8, CustomerID: 3, Issue: "Email notifications failing", Status: TicketOpen, Priority: PriorityMedium},
		{ID: 9, CustomerID: 5, Issue: "Dashboard slow loading", Status: TicketInProgress, Priority: PriorityMedium},
		{ID: 10, CustomerID: 6, Issue: "Report generation error", Status: TicketOpen, Priority: PriorityMedium},
		{ID: 11, CustomerID: 8, Issue: "Search returning wrong results", Status: TicketResolved, Priority: PriorityMedium},
		{ID: 12, CustomerID: 9, Issue: "Feature request: dark mode", Status: TicketInProgress, Priority: PriorityMedium},
		{ID: 13, CustomerID: 10, Issue: "Mobile app crash on startup", Status: TicketOpen, Priority: PriorityMedium},
		{ID: 14, CustomerID: 4, Issue: "API rate limiting too strict", Status: TicketResolved, Priority: PriorityMedium},
		{ID: 15, CustomerID: 5, Issue: "Unable to access beta feature", Status: TicketOpen, Priority: PriorityMedium},
		{ID: 16, CustomerID: 2, Issue: "Billing question", Status: TicketResolved, Priority: PriorityLow},
		{ID: 17, CustomerID: 2, Issue: "Request additional language support", Status: TicketOpen, Priority: PriorityLow},
	}
}

// AutoMigrate creates the customers and tickets tables when they do not
// exist yet. Production deployments run the versioned migrations in
// internal/migration instead; the in-process mesh and the stdio tool
// server use this to bootstrap fresh databases.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Customer{}, &Ticket{}); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Seed inserts the demo dataset when the customers table is empty.
// Already-seeded databases are left untouched.
func Seed(ctx context.Context, db *gorm.DB) error {
	var count int64
	if err := db.WithContext(ctx).Model(&Customer{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check existing data: %w", err)
	}
	if count > 0 {
		return nil
	}

	return db.WithContext(ctx).Transaction(insertSeed)
}

// insertSeed writes the canonical rows inside the caller's transaction.
func insertSeed(tx *gorm.DB) error {
	for _, customer := range seedCustomers() {
		if err := tx.Create(&customer).Error; err != nil {
			return fmt.Errorf("failed to seed customer %s: %w", customer.Name, err)
		}
	}

	for _, ticket := range seedTickets() {
		if err := tx.Create(&ticket).Error; err != nil {
			return fmt.Errorf("failed to seed ticket %d: %w", ticket.ID, err)
		}
	}

	return nil
}
