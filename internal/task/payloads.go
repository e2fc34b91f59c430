package task

// OrderPayload references an order by ID; handlers reload the row so
// they always see current state, not the state at enqueue time.
type OrderPayload struct {
	OrderID uint `json:"order_id"`
}

// OrderStatusPayload carries a status change notification.
type OrderStatusPayload struct {
	OrderID   uint   `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// WelcomeEmailPayload greets a newly registered customer.
type WelcomeEmailPayload struct {
	UserID uint `json:"user_id"`
}

// SMSPayload is a raw outbound text message.
type SMSPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// TelegramPayload is a raw outbound chat message.
type TelegramPayload struct {
	ChatID  int64  `json:"chat_id"`
	Message string `json:"message"`
}

// ReportPayload scopes a sales report.
type ReportPayload struct {
	TenantID uint   `json:"tenant_id,omitempty"`
	Period   string `json:"period,omitempty"` // daily, weekly, monthly
}
