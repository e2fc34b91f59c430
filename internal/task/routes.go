package task

import (
	"marketplace/pkg/queue"
)

// Task names. Producers enqueue by name; the worker resolves handlers
// from the same names.
const (
	TaskProcessNewOrder        = "process_new_order"
	TaskSendOrderConfirmation  = "send_order_confirmation"
	TaskSendOrderCancelled     = "send_order_cancelled"
	TaskSendOrderStatusUpdate  = "send_order_status_update"
	TaskSendWelcomeEmail       = "send_welcome_email"
	TaskNotifyShopOwner        = "notify_shop_owner"
	TaskSendSMS                = "send_sms"
	TaskSendTelegramMessage    = "send_telegram_message"
	TaskCancelUnpaidOrders     = "cancel_unpaid_orders"
	TaskCleanupOldCarts        = "cleanup_old_carts"
	TaskUpdateProductStats     = "update_product_statistics"
	TaskGenerateSalesReport    = "generate_sales_report"
	TaskGenerateDailyReport    = "generate_daily_report"
	TaskGenerateWeeklyReport   = "generate_weekly_report"
	TaskGenerateMonthlyReport  = "generate_monthly_report"
	TaskBackupDatabase         = "backup_database"
	TaskReindexSearch          = "reindex_elasticsearch"
	TaskSystemHealthCheck      = "system_health_check"
)

// Route fixes where a task runs and how urgent it is.
type Route struct {
	Queue    string
	Priority int
}

// routes is the full routing table. Every producible task must appear
// here; enqueueing an unrouted name is a programming error.
var routes = map[string]Route{
	// order pipeline
	TaskProcessNewOrder: {Queue: queue.QueueHighPriority, Priority: 10},

	// email
	TaskSendOrderConfirmation: {Queue: queue.QueueEmail, Priority: 9},
	TaskSendOrderCancelled:    {Queue: queue.QueueEmail, Priority: 8},
	TaskSendWelcomeEmail:      {Queue: queue.QueueEmail, Priority: 7},

	// notifications
	TaskNotifyShopOwner:       {Queue: queue.QueueNotifications, Priority: 9},
	TaskSendSMS:               {Queue: queue.QueueNotifications, Priority: 8},
	TaskSendTelegramMessage:   {Queue: queue.QueueNotifications, Priority: 8},
	TaskSendOrderStatusUpdate: {Queue: queue.QueueNotifications, Priority: 7},

	// maintenance
	TaskCancelUnpaidOrders:    {Queue: queue.QueueLowPriority, Priority: 3},
	TaskCleanupOldCarts:       {Queue: queue.QueueLowPriority, Priority: 2},
	TaskGenerateSalesReport:   {Queue: queue.QueueLowPriority, Priority: 4},
	TaskGenerateDailyReport:   {Queue: queue.QueueLowPriority, Priority: 4},
	TaskGenerateWeeklyReport:  {Queue: queue.QueueLowPriority, Priority: 4},
	TaskGenerateMonthlyReport: {Queue: queue.QueueLowPriority, Priority: 4},
	TaskBackupDatabase:        {Queue: queue.QueueLowPriority, Priority: 1},

	// periodic housekeeping
	TaskUpdateProductStats: {Queue: queue.QueueDefault, Priority: 5},
	TaskReindexSearch:      {Queue: queue.QueueDefault, Priority: 4},
	TaskSystemHealthCheck:  {Queue: queue.QueueDefault, Priority: 5},
}

// RouteFor looks up the route for a task name.
func RouteFor(name string) (Route, bool) {
	r, ok := routes[name]
	return r, ok
}

// ScheduleEntry pairs a cron spec with the task it produces.
type ScheduleEntry struct {
	Spec string
	Task string
}

// Schedule is the periodic production plan, evaluated in UTC.
func Schedule() []ScheduleEntry {
	return []ScheduleEntry{
		{Spec: "0 * * * *", Task: TaskCancelUnpaidOrders},     // hourly
		{Spec: "0 3 * * *", Task: TaskCleanupOldCarts},        // daily 03:00
		{Spec: "*/30 * * * *", Task: TaskUpdateProductStats},  // every 30 min
		{Spec: "0 9 * * *", Task: TaskGenerateDailyReport},    // daily 09:00
		{Spec: "0 10 * * 1", Task: TaskGenerateWeeklyReport},  // Monday 10:00
		{Spec: "0 9 1 * *", Task: TaskGenerateMonthlyReport},  // 1st of month 09:00
		{Spec: "0 2 * * *", Task: TaskBackupDatabase},         // daily 02:00
		{Spec: "0 */6 * * *", Task: TaskReindexSearch},        // every 6 hours
		{Spec: "*/5 * * * *", Task: TaskSystemHealthCheck},    // every 5 min
	}
}
