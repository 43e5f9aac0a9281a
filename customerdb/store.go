package customerdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/careflow/internal/database"
	"github.com/BaSui01/careflow/types"
)

// List limits applied when the caller gives none or asks for too much.
const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// allowedUpdateKeys are the customer columns a caller may change.
var allowedUpdateKeys = map[string]bool{
	"name":         true,
	"email":        true,
	"phone":        true,
	"status":       true,
	"tier":         true,
	"billing_info": true,
}

// ListFilter narrows ListCustomers. Invalid enum values are treated as
// unset rather than failing the call.
type ListFilter struct {
	Status *string
	Tier   *string
	Limit  int
}

// TicketFilter narrows ListTickets to the given customers.
type TicketFilter struct {
	CustomerIDs []uint
	Status      *string
	Priority    *string
}

// Store reads and writes the support schema through the pooled handle.
type Store struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

// NewStore creates a customer store over the pool.
func NewStore(pool *database.PoolManager, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		pool:   pool,
		logger: logger.With(zap.String("component", "customerdb")),
	}
}

func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.pool.DB().WithContext(ctx)
}

// GetCustomer loads one customer by id.
func (s *Store) GetCustomer(ctx context.Context, id uint) (*Customer, error) {
	var customer Customer
	err := s.db(ctx).First(&customer, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, fmt.Sprintf("customer %d not found", id))
	}
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to load customer").WithCause(err)
	}

	return &customer, nil
}

// ListCustomers returns customers matching the filter, ordered by id.
// The limit defaults to 10 and is clamped to [1,100].
func (s *Store) ListCustomers(ctx context.Context, filter ListFilter) ([]Customer, error) {
	query := s.db(ctx).Model(&Customer{})

	if filter.Status != nil {
		if status := NormalizeEnum(*filter.Status); ValidCustomerStatus(status) {
			query = query.Where("status = ?", status)
		}
	}
	if filter.Tier != nil {
		if tier := NormalizeEnum(*filter.Tier); ValidTier(tier) {
			query = query.Where("tier = ?", tier)
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var customers []Customer
	if err := query.Order("id").Limit(limit).Find(&customers).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list customers").WithCause(err)
	}

	return customers, nil
}

// UpdateCustomer applies the given column updates in a transaction and
// returns the refreshed row. Enum values are lowercased before
// validation; unknown keys are rejected.
func (s *Store) UpdateCustomer(ctx context.Context, id uint, updates map[string]any) (*Customer, error) {
	if len(updates) == 0 {
		return nil, types.NewError(types.ErrInvalidInput, "no update fields provided")
	}

	normalized := make(map[string]any, len(updates)+1)
	for key, value := range updates {
		if !allowedUpdateKeys[key] {
			return nil, types.NewError(types.ErrInvalidInput, fmt.Sprintf("invalid update field: %s", key))
		}

		if key == "status" || key == "tier" {
			text, ok := value.(string)
			if !ok {
				return nil, types.NewError(types.ErrInvalidInput, fmt.Sprintf("%s must be a string", key))
			}
			text = NormalizeEnum(text)

			if key == "status" && !ValidCustomerStatus(text) {
				return nil, types.NewError(types.ErrInvalidInput, "status must be 'active' or 'disabled'")
			}
			if key == "tier" && !ValidTier(text) {
				return nil, types.NewError(types.ErrInvalidInput, "tier must be one of 'standard', 'premium', 'enterprise'")
			}

			normalized[key] = text
			continue
		}

		normalized[key] = value
	}
	normalized["updated_at"] = time.Now().UTC()

	var updated Customer
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var existing Customer
		if err := tx.Select("id").First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.NewError(types.ErrNotFound, fmt.Sprintf("customer %d not found", id))
			}
			return err
		}

		if err := tx.Model(&Customer{}).Where("id = ?", id).Updates(normalized).Error; err != nil {
			return err
		}

		return tx.First(&updated, id).Error
	})
	if err != nil {
		var coded *types.Error
		if errors.As(err, &coded) {
			return nil, coded
		}
		return nil, types.NewError(types.ErrInternalError, "failed to update customer").WithCause(err)
	}

	s.logger.Info("customer updated",
		zap.Uint("customer_id", id),
		zap.Int("fields", len(updates)),
	)

	return &updated, nil
}

// CreateTicket opens a new ticket for an existing customer. An empty
// priority falls back to medium, matching the column default.
func (s *Store) CreateTicket(ctx context.Context, customerID uint, issue, priority string) (*Ticket, error) {
	if strings.TrimSpace(issue) == "" {
		return nil, types.NewError(types.ErrInvalidInput, "issue text is required")
	}

	priority = NormalizeEnum(priority)
	if priority == "" {
		priority = PriorityMedium
	}
	if !ValidPriority(priority) {
		return nil, types.NewError(types.ErrInvalidInput, "priority must be one of 'low', 'medium', 'high'")
	}

	var ticket Ticket
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var existing Customer
		if err := tx.Select("id").First(&existing, customerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.NewError(types.ErrNotFound, fmt.Sprintf("customer %d does not exist", customerID))
			}
			return err
		}

		ticket = Ticket{
			CustomerID: customerID,
			Issue:      issue,
			Status:     TicketOpen,
			Priority:   priority,
		}
		return tx.Create(&ticket).Error
	})
	if err != nil {
		var coded *types.Error
		if errors.As(err, &coded) {
			return nil, coded
		}
		return nil, types.NewError(types.ErrInternalError, "failed to create ticket").WithCause(err)
	}

	s.logger.Info("ticket created",
		zap.Uint("ticket_id", ticket.ID),
		zap.Uint("customer_id", customerID),
		zap.String("priority", priority),
	)

	return &ticket, nil
}

// GetCustomerHistory returns a customer together with every ticket they
// have filed.
func (s *Store) GetCustomerHistory(ctx context.Context, id uint) (*History, error) {
	customer, err := s.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}

	var tickets []Ticket
	if err := s.db(ctx).Where("customer_id = ?", id).Order("id").Find(&tickets).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to load ticket history").WithCause(err)
	}

	return &History{Customer: *customer, Tickets: tickets}, nil
}

// ListTickets returns tickets for the given customers. An empty id list
// short-circuits to an empty result; invalid enum filters are rejected.
func (s *Store) ListTickets(ctx context.Context, filter TicketFilter) ([]Ticket, error) {
	if len(filter.CustomerIDs) == 0 {
		return []Ticket{}, nil
	}

	query := s.db(ctx).Where("customer_id IN ?", filter.CustomerIDs)

	if filter.Status != nil {
		status := NormalizeEnum(*filter.Status)
		if !ValidTicketStatus(status) {
			return nil, types.NewError(types.ErrInvalidInput, "ticket status must be one of 'open', 'in_progress', 'resolved'")
		}
		query = query.Where("status = ?", status)
	}
	if filter.Priority != nil {
		priority := NormalizeEnum(*filter.Priority)
		if !ValidPriority(priority) {
			return nil, types.NewError(types.ErrInvalidInput, "ticket priority must be one of 'low', 'medium', 'high'")
		}
		query = query.Where("priority = ?", priority)
	}

	var tickets []Ticket
	if err := query.Order("id").Find(&tickets).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list tickets").WithCause(err)
	}

	return tickets, nil
}

// ResetDemoData clears both tables and reinserts the canonical dataset.
func (s *Store) ResetDemoData(ctx context.Context) error {
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM tickets").Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM customers").Error; err != nil {
			return err
		}
		return insertSeed(tx)
	})
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to reset demo data").WithCause(err)
	}

	s.logger.Info("demo data reset")

	return nil
}
