package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/harborline/storefront/internal/domain/cart"
	"github.com/harborline/storefront/internal/domain/currency"
	domorder "github.com/harborline/storefront/internal/domain/order"
	"github.com/harborline/storefront/internal/domain/payment"
	"github.com/harborline/storefront/internal/domain/pricing"
	"github.com/harborline/storefront/internal/domain/product"
	domuser "github.com/harborline/storefront/internal/domain/user"
	"github.com/harborline/storefront/internal/pkg/logging"
)

const tracerName = "storefront.settlement"

// outcomeErrored marks a delivery that failed before reaching a terminal
// state; the gateway is expected to redeliver it.
const outcomeErrored payment.Outcome = "errored"

// Processor turns verified charge-succeeded events into settlement records.
// Each delivery walks the same path: verify signature, classify type, check
// the idempotency key, resolve the payer, then persist the order before
// clearing the cart. The order is the source of truth; the cart clear is
// derived cleanup and is re-run when a duplicate delivery finds it missing.
type Processor struct {
	gateway  payment.Gateway
	users    domuser.Repository
	products product.Repository
	orders   domorder.Repository
	rates    currency.Store

	locks  *userLocks
	events *prometheus.CounterVec

	now   func() time.Time
	newID func() string
}

func NewProcessor(
	gw payment.Gateway,
	users domuser.Repository,
	products product.Repository,
	orders domorder.Repository,
	rates currency.Store,
	events *prometheus.CounterVec,
) *Processor {
	return &Processor{
		gateway:  gw,
		users:    users,
		products: products,
		orders:   orders,
		rates:    rates,
		locks:    newUserLocks(),
		events:   events,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// Process handles one delivered webhook payload and returns its terminal
// outcome. A non-nil error means the delivery was not settled and the
// gateway should redeliver (safe: the idempotency key absorbs replays);
// Rejected is the one outcome paired with an error that must not be retried.
func (p *Processor) Process(ctx context.Context, body []byte, signature string) (outcome payment.Outcome, err error) {
	logger := logging.FromContext(ctx).With(zap.String("component", "settlement"))

	ctx, span := otel.Tracer(tracerName).Start(ctx, "settlement.Process")
	defer func() {
		span.SetAttributes(attribute.String("settlement.outcome", string(outcome)))
		span.End()
		if p.events != nil {
			p.events.WithLabelValues(string(outcome)).Inc()
		}
	}()

	evt, err := p.gateway.ParseEvent(body, signature)
	if err != nil {
		if errors.Is(err, payment.ErrBadSignature) {
			logger.Warn("webhook_rejected", zap.Error(err))
		} else {
			logger.Warn("webhook_malformed", zap.Error(err))
		}
		return payment.OutcomeRejected, err
	}

	logger = logger.With(zap.String("event_id", evt.ExternalID), zap.String("event_type", evt.Type))

	if evt.Type != payment.TypeChargeSucceeded {
		// Not an error: acknowledged and dropped.
		logger.Info("webhook_ignored")
		return payment.OutcomeIgnored, nil
	}

	if existing, ferr := p.orders.FindBySourceEvent(ctx, evt.ExternalID); ferr == nil {
		p.repairSettle(ctx, logger, existing)
		logger.Info("webhook_already_processed", zap.String("order_id", existing.ID))
		return payment.OutcomeAlreadyProcessed, nil
	} else if !errors.Is(ferr, domorder.ErrNotFound) {
		return outcomeErrored, fmt.Errorf("settlement: idempotency lookup: %w", ferr)
	}

	u, err := p.users.FindByEmail(ctx, evt.PayerEmail)
	if err != nil {
		if errors.Is(err, domuser.ErrNotFound) {
			// Acknowledged so the gateway stops redelivering, but this is an
			// operator-visible anomaly: money moved with no user to settle.
			logger.Error("webhook_unfulfillable", zap.String("payer_email", evt.PayerEmail))
			return payment.OutcomeUnfulfillable, nil
		}
		return outcomeErrored, fmt.Errorf("settlement: payer lookup: %w", err)
	}

	lock := p.locks.forUser(u.ID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock: a concurrent delivery of the same event may
	// have settled while this one waited.
	if existing, ferr := p.orders.FindBySourceEvent(ctx, evt.ExternalID); ferr == nil {
		p.repairSettle(ctx, logger, existing)
		logger.Info("webhook_already_processed", zap.String("order_id", existing.ID))
		return payment.OutcomeAlreadyProcessed, nil
	} else if !errors.Is(ferr, domorder.ErrNotFound) {
		return outcomeErrored, fmt.Errorf("settlement: idempotency lookup: %w", ferr)
	}

	ord, err := p.buildOrder(ctx, logger, u.ID, evt)
	if err != nil {
		return outcomeErrored, err
	}

	if err := p.orders.Create(ctx, ord); err != nil {
		if errors.Is(err, domorder.ErrDuplicateEvent) {
			logger.Info("webhook_already_processed", zap.String("event_id", evt.ExternalID))
			return payment.OutcomeAlreadyProcessed, nil
		}
		return outcomeErrored, fmt.Errorf("settlement: persist order: %w", err)
	}

	// The order is durable from here on. A failed clear is logged and left
	// for the next delivery of this event to repair; it must not undo the
	// settlement or fail the acknowledgment.
	if err := p.users.Settle(ctx, u.ID, ord.ID, orderLines(ord)); err != nil {
		logger.Error("cart_clear_failed",
			zap.String("order_id", ord.ID),
			zap.String("user_id", u.ID),
			zap.Error(err),
		)
	}

	logger.Info("settlement_done",
		zap.String("order_id", ord.ID),
		zap.String("user_id", u.ID),
		zap.Int64("amount", ord.Amount),
		zap.String("currency", ord.Currency),
	)
	return payment.OutcomeFinalized, nil
}

// buildOrder freezes the cart as read in one snapshot, with per-item purchase
// prices in the event currency. Amount and currency are copied from the event
// verbatim. Each order item keeps the cart line's identity (product, AddedAt),
// which is what the cart clear later removes; an add committing after this
// read has an identity the order never captured and is left alone.
func (p *Processor) buildOrder(ctx context.Context, logger *zap.Logger, userID string, evt *payment.Event) (*domorder.Order, error) {
	u, err := p.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("settlement: load user: %w", err)
	}

	snapshot, err := p.rates.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("settlement: rate snapshot: %w", err)
	}

	items := make([]domorder.Item, 0, len(u.Cart.Items))
	for _, li := range u.Cart.Items {
		prod, err := p.products.Get(ctx, li.ProductID)
		if err != nil {
			return nil, fmt.Errorf("settlement: cart item %s: %w", li.ProductID, err)
		}

		// Resolve the audit price in the charged currency; when the rate is
		// unknown the base-currency price is recorded instead.
		price := prod.BasePrice
		resolved, unresolved := pricing.Resolve(prod.BasePrice, []string{evt.Currency}, snapshot)
		if len(unresolved) == 0 {
			price = resolved[evt.Currency]
		} else {
			logger.Warn("purchase_price_unresolved",
				zap.String("product_id", prod.ID),
				zap.String("currency", evt.Currency),
			)
		}

		items = append(items, domorder.Item{
			ProductID:       prod.ID,
			AddedAt:         li.AddedAt,
			PriceAtPurchase: price,
		})
	}

	return &domorder.Order{
		ID:            p.newID(),
		OwnerID:       u.ID,
		Items:         items,
		Amount:        evt.Amount,
		Currency:      evt.Currency,
		SourceEventID: evt.ExternalID,
		CreatedAt:     p.now().UTC(),
	}, nil
}

// orderLines rebuilds the clear list from the lines the order settled.
func orderLines(ord *domorder.Order) []cart.LineItem {
	lines := make([]cart.LineItem, 0, len(ord.Items))
	for _, it := range ord.Items {
		lines = append(lines, cart.LineItem{ProductID: it.ProductID, AddedAt: it.AddedAt})
	}
	return lines
}

// repairSettle re-runs the derived cart cleanup for an order that already
// exists. If the previous delivery persisted the order but failed to clear
// the cart, this brings the cart back in line with the settlement record.
func (p *Processor) repairSettle(ctx context.Context, logger *zap.Logger, ord *domorder.Order) {
	if err := p.users.Settle(ctx, ord.OwnerID, ord.ID, orderLines(ord)); err != nil && !errors.Is(err, domuser.ErrNotFound) {
		logger.Error("cart_repair_failed",
			zap.String("order_id", ord.ID),
			zap.String("user_id", ord.OwnerID),
			zap.Error(err),
		)
	}
}
