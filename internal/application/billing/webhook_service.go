package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"

	"github.com/creditgw/backend/internal/domain/billing"
	domainidentity "github.com/creditgw/backend/internal/domain/identity"
	"github.com/creditgw/backend/internal/domain/shared"
	"github.com/creditgw/backend/internal/infrastructure/config"
)

// WebhookService reconciles payment provider events into account state.
//
// Delivery is at-least-once and unordered, so every handler must be safe
// to apply for a redelivered or late event: the dedup store absorbs exact
// duplicates, the stale cutoff drops events older than the tolerance, and
// the balance semantics per event type are chosen so a replay cannot
// double-grant credits.
type WebhookService struct {
	accounts    billing.AccountRepository
	credentials domainidentity.CredentialRepository
	ledger      *LedgerService
	dedup       shared.IdempotencyStore
	stripeCfg   config.StripeConfig
	dedupTTL    time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// WebhookServiceConfig contains configuration for WebhookService
type WebhookServiceConfig struct {
	Accounts    billing.AccountRepository
	Credentials domainidentity.CredentialRepository
	Ledger      *LedgerService
	Dedup       shared.IdempotencyStore
	Stripe      config.StripeConfig
	DedupTTL    time.Duration
	Logger      *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(cfg WebhookServiceConfig) *WebhookService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = shared.DefaultIdempotencyConfig().TTL
	}
	return &WebhookService{
		accounts:    cfg.Accounts,
		credentials: cfg.Credentials,
		ledger:      cfg.Ledger,
		dedup:       cfg.Dedup,
		stripeCfg:   cfg.Stripe,
		dedupTTL:    cfg.DedupTTL,
		now:         time.Now,
		logger:      cfg.Logger,
	}
}

// ErrInvalidSignature is returned for deliveries that fail signature
// verification; the transport layer maps it to a client error so the
// sender does not retry
var ErrInvalidSignature = shared.NewDomainError("WEBHOOK_SIGNATURE", "Webhook signature verification failed")

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// ProcessWebhook verifies, deduplicates and dispatches a payment event.
// A nil error means the delivery should be acknowledged; a non-nil error
// tells the provider to retry.
func (s *WebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.stripeCfg.WebhookSecret)
	if err != nil {
		s.logger.Error("Failed to verify webhook signature",
			zap.Error(err))
		return nil, ErrInvalidSignature
	}

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
	}

	if age := s.now().Sub(time.Unix(event.Created, 0)); age > s.stripeCfg.StaleTolerance {
		// Acknowledge so the provider stops redelivering, but apply nothing:
		// newer events for the same account may already have been processed.
		s.logger.Warn("Dropping stale webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Duration("age", age))
		result.Message = "Event too old"
		return result, nil
	}

	claimed, err := s.dedup.MarkProcessed(ctx, event.ID, s.dedupTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to claim event: %w", err)
	}
	if !claimed {
		s.logger.Info("Skipping duplicate webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		result.Message = "Event already processed"
		return result, nil
	}

	s.logger.Info("Processing webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	switch event.Type {
	case "checkout.session.completed":
		err = s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created":
		err = s.handleSubscriptionCreated(ctx, event)
	case "customer.subscription.updated":
		err = s.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		err = s.handleSubscriptionDeleted(ctx, event)
	case "invoice.paid":
		err = s.handleInvoicePaid(ctx, event)
	case "invoice.payment_failed":
		err = s.handleInvoicePaymentFailed(ctx, event)
	default:
		s.logger.Debug("Unhandled webhook event type",
			zap.String("event_type", string(event.Type)))
		result.Processed = true
		result.Message = "Event type not handled"
		return result, nil
	}

	if err != nil {
		// Release the claim so the provider's retry can reprocess
		if unmarkErr := s.dedup.Unmark(ctx, event.ID); unmarkErr != nil {
			s.logger.Error("Failed to release event claim",
				zap.String("event_id", event.ID),
				zap.Error(unmarkErr))
		}
		s.logger.Error("Failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		result.Message = err.Error()
		return result, err
	}

	result.Processed = true
	return result, nil
}

// handleCheckoutCompleted binds the provider's customer and subscription
// IDs to the account named in the session metadata and, when the session
// carries a tier, activates it with its allotment. The overlapping
// subscription.created event replaces the balance with the same allotment,
// so arrival order does not matter.
func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	accountIDStr, ok := session.Metadata["account_id"]
	if !ok || accountIDStr == "" {
		s.logger.Warn("Checkout session has no account metadata, skipping",
			zap.String("session_id", session.ID))
		return nil
	}

	account, err := s.findAccountByIDString(ctx, accountIDStr)
	if err != nil {
		if err == shared.ErrNotFound {
			s.logger.Warn("Account not found for checkout session",
				zap.String("account_id", accountIDStr),
				zap.String("session_id", session.ID))
			return nil
		}
		return fmt.Errorf("failed to find account: %w", err)
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	subscriptionID := ""
	if session.Subscription != nil {
		subscriptionID = session.Subscription.ID
	}
	account.BindSubscription(customerID, subscriptionID)

	tier := billing.ParseTier(session.Metadata["tier"])
	if tier.IsValid() && tier != billing.TierFree {
		if err := account.ActivateTier(tier); err != nil {
			return fmt.Errorf("failed to activate tier: %w", err)
		}
	}

	if err := s.accounts.Save(ctx, account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	if tier.IsValid() && tier != billing.TierFree {
		if err := s.ledger.ResetTo(ctx, account.ID, tier.MonthlyCredits()); err != nil {
			return err
		}
		s.refreshCachedTier(ctx, account)
	}

	s.logger.Info("Checkout session bound to account",
		zap.String("account_id", account.ID.String()),
		zap.String("customer_id", customerID),
		zap.String("subscription_id", subscriptionID),
		zap.String("tier", string(account.Tier)))
	return nil
}

// handleSubscriptionCreated activates the purchased tier and replaces the
// balance with the tier's monthly allotment. Replace rather than add keeps
// the grant idempotent against redelivery and against the overlapping
// invoice.paid for the first billing cycle.
func (s *WebhookService) handleSubscriptionCreated(ctx context.Context, event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	customerID := ""
	if subscription.Customer != nil {
		customerID = subscription.Customer.ID
	}
	if customerID == "" {
		s.logger.Warn("Subscription has no customer ID, skipping",
			zap.String("subscription_id", subscription.ID))
		return nil
	}

	account, err := s.accounts.FindByCustomerID(ctx, customerID)
	if err != nil {
		if err == shared.ErrNotFound {
			// Webhooks may arrive before checkout binding completes, or for
			// customers not in our system. Acknowledge to stop retries.
			s.logger.Warn("Account not found for customer",
				zap.String("customer_id", customerID))
			return nil
		}
		return fmt.Errorf("failed to find account: %w", err)
	}

	tier, ok := s.tierFromSubscription(subscription)
	if !ok {
		s.logger.Warn("Subscription price not mapped to a tier, skipping",
			zap.String("subscription_id", subscription.ID))
		return nil
	}

	account.BindSubscription(customerID, subscription.ID)
	if err := account.ActivateTier(tier); err != nil {
		return fmt.Errorf("failed to activate tier: %w", err)
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	if err := s.ledger.ResetTo(ctx, account.ID, tier.MonthlyCredits()); err != nil {
		return err
	}
	s.refreshCachedTier(ctx, account)

	s.logger.Info("Subscription activated",
		zap.String("account_id", account.ID.String()),
		zap.String("subscription_id", subscription.ID),
		zap.String("tier", string(tier)))
	return nil
}

// handleSubscriptionUpdated applies tier and status changes. The balance
// is never touched here: plan changes take effect on the next renewal.
func (s *WebhookService) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	account, err := s.findAccountForSubscription(ctx, subscription)
	if err != nil {
		if err == shared.ErrNotFound {
			s.logger.Warn("Account not found for subscription",
				zap.String("subscription_id", subscription.ID))
			return nil
		}
		return fmt.Errorf("failed to find account: %w", err)
	}

	tier, ok := s.tierFromSubscription(subscription)
	if !ok {
		tier = account.Tier
	}

	var status billing.SubscriptionStatus
	switch subscription.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		status = billing.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		status = billing.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		status = billing.SubscriptionStatusCancelled
	default:
		status = account.SubscriptionStatus
	}

	if err := account.UpdateTier(tier, status); err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	s.refreshCachedTier(ctx, account)

	s.logger.Info("Subscription updated",
		zap.String("account_id", account.ID.String()),
		zap.String("subscription_id", subscription.ID),
		zap.String("tier", string(tier)),
		zap.String("status", string(status)))
	return nil
}

// handleSubscriptionDeleted downgrades the account to the free tier.
// Remaining credits are preserved and stay spendable at free-tier rate
// limits.
func (s *WebhookService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	account, err := s.findAccountForSubscription(ctx, subscription)
	if err != nil {
		if err == shared.ErrNotFound {
			s.logger.Warn("Account not found for subscription",
				zap.String("subscription_id", subscription.ID))
			return nil
		}
		return fmt.Errorf("failed to find account: %w", err)
	}

	account.CancelSubscription()
	if err := s.accounts.Save(ctx, account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	s.refreshCachedTier(ctx, account)

	s.logger.Info("Subscription cancelled, account downgraded to free",
		zap.String("account_id", account.ID.String()),
		zap.String("subscription_id", subscription.ID),
		zap.String("remaining_balance", account.Balance.String()))
	return nil
}

// handleInvoicePaid grants the renewal allotment on top of whatever
// balance remains. The first invoice of a subscription is skipped because
// subscription.created already granted the initial allotment.
func (s *WebhookService) handleInvoicePaid(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	if invoice.BillingReason == stripe.InvoiceBillingReasonSubscriptionCreate {
		s.logger.Debug("Skipping initial invoice, allotment granted at subscription creation",
			zap.String("invoice_id", invoice.ID))
		return nil
	}

	customerID := ""
	if invoice.Customer != nil {
		customerID = invoice.Customer.ID
	}
	if customerID == "" {
		s.logger.Warn("Invoice has no customer ID, skipping",
			zap.String("invoice_id", invoice.ID))
		return nil
	}

	account, err := s.accounts.FindByCustomerID(ctx, customerID)
	if err != nil {
		if err == shared.ErrNotFound {
			s.logger.Warn("Account not found for customer",
				zap.String("customer_id", customerID))
			return nil
		}
		return fmt.Errorf("failed to find account: %w", err)
	}

	if account.SubscriptionStatus == billing.SubscriptionStatusPastDue {
		if err := account.UpdateTier(account.Tier, billing.SubscriptionStatusActive); err != nil {
			return fmt.Errorf("failed to reactivate account: %w", err)
		}
		if err := s.accounts.Save(ctx, account); err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}
	}

	newBalance, err := s.ledger.Grant(ctx, account.ID, account.Tier.MonthlyCredits())
	if err != nil {
		return err
	}

	s.logger.Info("Renewal allotment granted",
		zap.String("account_id", account.ID.String()),
		zap.String("invoice_id", invoice.ID),
		zap.String("tier", string(account.Tier)),
		zap.String("balance", newBalance.String()))
	return nil
}

// handleInvoicePaymentFailed marks the account past due. Past-due
// accounts keep their balance but new requests are refused at admission.
func (s *WebhookService) handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	customerID := ""
	if invoice.Customer != nil {
		customerID = invoice.Customer.ID
	}
	if customerID == "" {
		s.logger.Warn("Invoice has no customer ID, skipping",
			zap.String("invoice_id", invoice.ID))
		return nil
	}

	account, err := s.accounts.FindByCustomerID(ctx, customerID)
	if err != nil {
		if err == shared.ErrNotFound {
			s.logger.Warn("Account not found for customer",
				zap.String("customer_id", customerID))
			return nil
		}
		return fmt.Errorf("failed to find account: %w", err)
	}

	account.MarkPastDue()
	if err := s.accounts.Save(ctx, account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	s.logger.Warn("Account marked past due after payment failure",
		zap.String("account_id", account.ID.String()),
		zap.String("invoice_id", invoice.ID))
	return nil
}

// tierFromSubscription resolves the purchased tier from the price ID of
// the subscription's first item
func (s *WebhookService) tierFromSubscription(subscription stripe.Subscription) (billing.Tier, bool) {
	if subscription.Items == nil || len(subscription.Items.Data) == 0 {
		return "", false
	}
	item := subscription.Items.Data[0]
	if item.Price == nil {
		return "", false
	}
	name := s.stripeCfg.TierForPrice(item.Price.ID)
	if name == "" {
		return "", false
	}
	tier := billing.Tier(name)
	if !tier.IsValid() {
		s.logger.Warn("Price mapped to unknown tier",
			zap.String("price_id", item.Price.ID),
			zap.String("tier", name))
		return "", false
	}
	return tier, true
}

func (s *WebhookService) findAccountForSubscription(ctx context.Context, subscription stripe.Subscription) (*billing.Account, error) {
	account, err := s.accounts.FindBySubscriptionID(ctx, subscription.ID)
	if err == shared.ErrNotFound && subscription.Customer != nil && subscription.Customer.ID != "" {
		return s.accounts.FindByCustomerID(ctx, subscription.Customer.ID)
	}
	return account, err
}

func (s *WebhookService) findAccountByIDString(ctx context.Context, id string) (*billing.Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return nil, shared.ErrNotFound
	}
	return s.accounts.FindByID(ctx, accountID)
}

// refreshCachedTier propagates the account's tier to its API keys so the
// rate limiter picks up the new requests-per-minute ceiling
func (s *WebhookService) refreshCachedTier(ctx context.Context, account *billing.Account) {
	if s.credentials == nil {
		return
	}
	if err := s.credentials.RefreshCachedTier(ctx, account.ID, account.Tier); err != nil {
		s.logger.Warn("Failed to refresh cached tier on credentials",
			zap.String("account_id", account.ID.String()),
			zap.Error(err))
	}
}
