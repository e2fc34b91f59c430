package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/cache"
	"marketplace/internal/database"
	"marketplace/internal/model"
	"marketplace/internal/notify"
	"marketplace/internal/repository"
	"marketplace/internal/search"
	"marketplace/internal/service/order"
	"marketplace/internal/task"
	"marketplace/pkg/log"
	"marketplace/pkg/queue"
)

const (
	// unpaidOrderGrace is how long a pending order may stay unpaid
	// before the hourly sweep cancels it.
	unpaidOrderGrace = 24 * time.Hour

	// staleCartAge is how long an untouched cart line survives.
	staleCartAge = 7 * 24 * time.Hour

	// viewCountPrefix is where the API buffers product view counters.
	viewCountPrefix = "views:product:"
)

// Handlers binds every routed task to its implementation.
type Handlers struct {
	orders     *order.Service
	orderRepo  repository.OrderRepository
	users      repository.UserRepository
	tenants    repository.TenantRepository
	products   repository.ProductRepository
	carts      repository.CartRepository
	dispatcher *task.Dispatcher

	mailer   notify.Mailer
	sms      notify.SMSSender
	telegram notify.TelegramSender

	search *search.Service // nil when search is disabled
	cache  *cache.Cache
}

// NewHandlers wires the handler set.
func NewHandlers(
	orders *order.Service,
	orderRepo repository.OrderRepository,
	users repository.UserRepository,
	tenants repository.TenantRepository,
	products repository.ProductRepository,
	carts repository.CartRepository,
	dispatcher *task.Dispatcher,
	mailer notify.Mailer,
	sms notify.SMSSender,
	telegram notify.TelegramSender,
	searchSvc *search.Service,
	c *cache.Cache,
) *Handlers {
	return &Handlers{
		orders:     orders,
		orderRepo:  orderRepo,
		users:      users,
		tenants:    tenants,
		products:   products,
		carts:      carts,
		dispatcher: dispatcher,
		mailer:     mailer,
		sms:        sms,
		telegram:   telegram,
		search:     searchSvc,
		cache:      c,
	}
}

// Register attaches every handler to the pool.
func (h *Handlers) Register(pool *queue.WorkerPool) {
	pool.Register(task.TaskProcessNewOrder, h.processNewOrder)
	pool.Register(task.TaskSendOrderConfirmation, h.sendOrderConfirmation)
	pool.Register(task.TaskSendOrderCancelled, h.sendOrderCancelled)
	pool.Register(task.TaskSendOrderStatusUpdate, h.sendOrderStatusUpdate)
	pool.Register(task.TaskSendWelcomeEmail, h.sendWelcomeEmail)
	pool.Register(task.TaskNotifyShopOwner, h.notifyShopOwner)
	pool.Register(task.TaskSendSMS, h.sendSMS)
	pool.Register(task.TaskSendTelegramMessage, h.sendTelegramMessage)
	pool.Register(task.TaskCancelUnpaidOrders, h.cancelUnpaidOrders)
	pool.Register(task.TaskCleanupOldCarts, h.cleanupOldCarts)
	pool.Register(task.TaskUpdateProductStats, h.updateProductStatistics)
	pool.Register(task.TaskGenerateSalesReport, h.generateSalesReport)
	pool.Register(task.TaskGenerateDailyReport, h.reportHandler("daily"))
	pool.Register(task.TaskGenerateWeeklyReport, h.reportHandler("weekly"))
	pool.Register(task.TaskGenerateMonthlyReport, h.reportHandler("monthly"))
	pool.Register(task.TaskBackupDatabase, h.backupDatabase)
	pool.Register(task.TaskReindexSearch, h.reindexSearch)
	pool.Register(task.TaskSystemHealthCheck, h.systemHealthCheck)
}

func decodePayload(job *queue.Job, dest interface{}) error {
	if len(job.Payload) == 0 {
		return fmt.Errorf("task %s: empty payload", job.Name)
	}
	if err := json.Unmarshal(job.Payload, dest); err != nil {
		return fmt.Errorf("task %s: decode payload: %w", job.Name, err)
	}
	return nil
}

// processNewOrder fans a fresh order out to the notification tasks.
// Keeping the fan-out on the queue means each leg retries on its own.
func (h *Handlers) processNewOrder(ctx context.Context, job *queue.Job) error {
	var p task.OrderPayload
	if err := decodePayload(job, &p); err != nil {
		return err
	}

	o, err := h.orderRepo.GetByID(ctx, p.OrderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", p.OrderID, err)
	}

	h.dispatcher.TryEnqueue(ctx, task.TaskSendOrderConfirmation, task.OrderPayload{OrderID: o.ID})
	h.dispatcher.TryEnqueue(ctx, task.TaskNotifyShopOwner, task.OrderPayload{OrderID: o.ID})

	log.WithFields(map[string]interface{}{
		"order_id":     o.ID,
		"order_number": o.OrderNumber,
	}).Info("New order processed")
	return nil
}

func (h *Handlers) loadOrderAndCustomer(ctx context.Context, orderID uint) (*model.Order, *model.User, error) {
	o, err := h.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	u, err := h.users.GetByID(ctx, o.CustomerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load customer %d: %w", o.CustomerID, err)
	}
	return o, u, nil
}

func (h *Handlers) sendOrderConfirmation(ctx context.Context, job *queue.Job) error {
	var p task.OrderPayload
	if err := decodePayload(job, &p); err != nil {
		return err
	}

	o, u, err := h.loadOrderAndCustomer(ctx, p.OrderID)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Hi %s,\n\nyour order %s for %.2f has been received.\n", u.FullName, o.OrderNumber, o.Total)
	return h.mailer.Send(ctx, u.Email, fmt.Sprintf("Order %s confirmed", o.OrderNumber), body)
}

func (h *Handlers) sendOrderCancelled(ctx context.Context, job *queue.Job) error {
	var p task.OrderPayload
	if err := decodePayload(job, &p); err != nil {
		return err
	}

	o, u, err := h.loadOrderAndCustomer(ctx, p.OrderID)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Hi %s,\n\nyour order %s has been cancelled.\n", u.FullName, o.OrderNumber)
	return h.mailer.Send(ctx, u.Email, fmt.Sprintf("Order %s cancelled", o.OrderNumber), body)
}

func (h *Handlers) sendOrderStatusUpdate(ctx context.Context, job *queue.Job) error {
	var p task.OrderStatusPayload
	if err := decodePayload(job, &p); err != nil {
		return err
	}

	o, u, err := h.loadOrderAndCustomer(ctx, p.OrderID)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Hi %s,\n\norder %s moved from %s to %s.\n", u.FullName, o.OrderNumber, p.OldStatus, p.NewStatus)
	return h.mailer.Send(ctx, u.Email, fmt.Sprintf("Order %s update", o.OrderNumber), body)
}

func (h *Handlers) sendWelcomeEmail(ctx context.Context, job *queue.Job) error {
	var p task.WelcomeEmailPayload
	if err := decodePayload(job, &p); err != nil {
		return err
	}

	u, err := h.users.GetByID(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", p.UserID, err)
	}

	body := fmt.Sprintf("Hi %s,\n\nwelcome aboard!\n", u.FullName)
	return h.mailer.Send(ctx, u.Email, "Welcome", body)
}

// notifyShopOwner pings the shop owner about an order on their
// configured telegram chat; shops without one just get a log line.
// The ping carries a low-stock warning when the order drained any
// tracked product below its threshold.
func (h *Handlers) notifyShopOwner(ctx context.Context, job *queue.Job) error {
	var p task.OrderPayload
	if err := decodePayload(job, &p); err != nil {
		return err
	}

	o, err := h.orderRepo.GetByID(ctx, p.OrderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", p.OrderID, err)
	}
	tenant, err := h.tenants.GetByID(ctx, o.TenantID)
	if err != nil {
		return fmt.Errorf("load tenant %d: %w", o.TenantID, err)
	}

	message := fmt.Sprintf("Order %s: %.2f (%s)", o.OrderNumber, o.Total, o.PaymentStatus)

	if low, err := h.products.ListLowStock(ctx, o.TenantID); err != nil {
		log.WithError(err).WithField("tenant_id", o.TenantID).Warn("Low stock lookup failed")
	} else if len(low) > 0 {
		names := make([]string, 0, len(low))
		for i := range low {
			names = append(names, fmt.Sprintf("%s (%d left)", low[i].Name, low[i].StockQuantity))
		}
		message += "\nLow stock: " + strings.Join(names, ", ")
	}

	chatID, ok := tenant.TelegramChatID()
	if !ok {
		log.WithFields(map[string]interface{}{
			"tenant_id":    tenant.ID,
			"order_number": o.OrderNumber,
		}).Info("Shop owner has no telegram chat configured")
		return nil
	}
	return h.telegram.Send(ctx, chatID, message)
}

func (h *Handlers) sendSMS(ctx context.Context, job *queue.Job) error {
	var p task.SMSPayload
	if err := decodePayload(job, &p); err != nil {
		return err
	}
	return h.sms.Send(ctx, p.Phone, p.Message)
}

func (h *Handlers) sendTelegramMessage(ctx context.Context, job *queue.Job) error {
	var p task.TelegramPayload
	if err := decodePayload(job, &p); err != nil {
		return err
	}
	return h.telegram.Send(ctx, p.ChatID, p.Message)
}

func (h *Handlers) cancelUnpaidOrders(ctx context.Context, job *queue.Job) error {
	_, err := h.orders.CancelUnpaidOrders(ctx, unpaidOrderGrace)
	return err
}

func (h *Handlers) cleanupOldCarts(ctx context.Context, job *queue.Job) error {
	removed, err := h.carts.DeleteStale(ctx, time.Now().Add(-staleCartAge))
	if err != nil {
		return err
	}
	if removed > 0 {
		log.WithField("removed", removed).Info("Stale cart items removed")
	}
	return nil
}

// updateProductStatistics drains the buffered view counters from the
// cache into the database.
func (h *Handlers) updateProductStatistics(ctx context.Context, job *queue.Job) error {
	keys, err := h.cache.Keys(ctx, viewCountPrefix+"*")
	if err != nil {
		return fmt.Errorf("scan view counters: %w", err)
	}

	flushed := 0
	for _, key := range keys {
		var productID uint
		if _, err := fmt.Sscanf(key, viewCountPrefix+"%d", &productID); err != nil {
			continue
		}

		views, err := h.cache.GetDel(ctx, key)
		if err != nil || views == 0 {
			continue
		}
		if err := h.products.AddViews(ctx, productID, int(views)); err != nil {
			log.WithError(err).WithField("product_id", productID).Error("Failed to flush view counter")
			continue
		}
		flushed++
	}

	if flushed > 0 {
		log.WithField("products", flushed).Info("Product view counters flushed")
	}
	return nil
}

func (h *Handlers) generateSalesReport(ctx context.Context, job *queue.Job) error {
	var p task.ReportPayload
	if len(job.Payload) > 0 {
		if err := decodePayload(job, &p); err != nil {
			return err
		}
	}
	if p.Period == "" {
		p.Period = "daily"
	}
	return h.runReport(ctx, p.Period, p.TenantID)
}

func (h *Handlers) reportHandler(period string) queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		return h.runReport(ctx, period, 0)
	}
}

func reportWindow(period string, now time.Time) (time.Time, time.Time) {
	switch period {
	case "weekly":
		return now.AddDate(0, 0, -7), now
	case "monthly":
		return now.AddDate(0, -1, 0), now
	default:
		return now.AddDate(0, 0, -1), now
	}
}

// runReport summarizes paid orders per tenant and pushes the numbers
// to owners who configured a telegram chat.
func (h *Handlers) runReport(ctx context.Context, period string, onlyTenant uint) error {
	from, to := reportWindow(period, time.Now().UTC())

	tenants, _, err := h.tenants.List(ctx, 0, 1000)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	for i := range tenants {
		t := &tenants[i]
		if onlyTenant > 0 && t.ID != onlyTenant {
			continue
		}

		summary, err := h.orderRepo.Summarize(ctx, t.ID, from, to)
		if err != nil {
			log.WithError(err).WithField("tenant_id", t.ID).Error("Report aggregation failed")
			continue
		}

		log.WithFields(map[string]interface{}{
			"tenant_id": t.ID,
			"period":    period,
			"orders":    summary.Orders,
			"revenue":   summary.Revenue,
		}).Info("Sales report generated")

		if chatID, ok := t.TelegramChatID(); ok {
			msg := fmt.Sprintf("%s report for %s: %d paid orders, %.2f revenue",
				period, t.Name, summary.Orders, summary.Revenue)
			if err := h.telegram.Send(ctx, chatID, msg); err != nil {
				log.WithError(err).WithField("tenant_id", t.ID).Warn("Report delivery failed")
			}
		}
	}
	return nil
}

// backupDatabase records the backup trigger. The dump itself runs out
// of band (mysqldump via the ops cron); this task exists so the beat
// schedule and its monitoring stay in one place.
func (h *Handlers) backupDatabase(ctx context.Context, job *queue.Job) error {
	log.Info("Database backup triggered")
	return nil
}

// reindexSearch rebuilds the product index from the database.
func (h *Handlers) reindexSearch(ctx context.Context, job *queue.Job) error {
	if h.search == nil {
		log.Debug("Search disabled, reindex skipped")
		return nil
	}

	indexed := 0
	err := h.products.ListAll(ctx, 500, func(batch []model.Product) error {
		for i := range batch {
			if err := h.search.IndexProduct(ctx, search.NewProductDoc(&batch[i])); err != nil {
				return err
			}
			indexed++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reindex products: %w", err)
	}

	log.WithField("products", indexed).Info("Search reindex completed")
	return nil
}

func (h *Handlers) systemHealthCheck(ctx context.Context, job *queue.Job) error {
	status := map[string]interface{}{}

	if err := database.Health(); err != nil {
		status["database"] = err.Error()
	} else {
		status["database"] = "ok"
	}
	if err := h.cache.Health(ctx); err != nil {
		status["cache"] = err.Error()
	} else {
		status["cache"] = "ok"
	}
	if h.search != nil {
		if err := h.search.Health(ctx); err != nil {
			status["search"] = err.Error()
		} else {
			status["search"] = "ok"
		}
	}

	log.WithFields(status).Info("System health check")
	return nil
}
