package fixtures

import "github.com/BaSui01/careflow/customerdb"

// ActiveCustomer 返回一个标准的活跃客户样例。
func ActiveCustomer() customerdb.Customer {
	return customerdb.Customer{
		ID:          1,
		Name:        "Ashwin Ram",
		Email:       "ashwinram232@gmail.com",
		Phone:       "7738863498",
		Status:      customerdb.StatusActive,
		Tier:        customerdb.TierPremium,
		BillingInfo: "Visa ****1234",
	}
}

// DisabledCustomer 返回一个停用客户样例。
func DisabledCustomer() customerdb.Customer {
	return customerdb.Customer{
		ID:     3,
		Name:   "Liam Johnson",
		Email:  "liam.johnson@example.org",
		Phone:  "7735550102",
		Status: customerdb.StatusDisabled,
		Tier:   customerdb.TierEnterprise,
	}
}

// OpenTicket 返回一个未关闭的工单样例。
func OpenTicket() customerdb.Ticket {
	return customerdb.Ticket{
		ID:         1,
		CustomerID: 1,
		Issue:      "Cannot login to system",
		Status:     customerdb.TicketOpen,
		Priority:   customerdb.PriorityHigh,
	}
}

// CustomerHistory 返回一个客户加工单历史的样例。
func CustomerHistory() customerdb.History {
	return customerdb.History{
		Customer: ActiveCustomer(),
		Tickets:  []customerdb.Ticket{OpenTicket()},
	}
}
