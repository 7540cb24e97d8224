package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appbilling "github.com/creditgw/backend/internal/application/billing"
	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/infrastructure/logger"
	"github.com/creditgw/backend/internal/infrastructure/pricing"
	"github.com/creditgw/backend/internal/infrastructure/ratelimit"
	"github.com/creditgw/backend/internal/infrastructure/upstream"
)

// stage names the admission steps for log correlation
type stage string

const (
	stageReceived        stage = "received"
	stageAuthenticated   stage = "authenticated"
	stageRateChecked     stage = "rate_checked"
	stageCreditEstimated stage = "credit_estimated"
	stageDispatched      stage = "dispatched"
	stageBilled          stage = "billed"
	stageLogged          stage = "logged"
)

// Dispatcher forwards an admitted request body to the provider
type Dispatcher interface {
	ChatCompletions(ctx context.Context, body []byte) (*upstream.Result, error)
}

var _ Dispatcher = (*upstream.Client)(nil)

// Pipeline runs a request through admission, dispatch and settlement.
//
// Ordering is strict: every rejection (auth, rate limit, credits) happens
// before dispatch and has no billing side effects beyond the rate counter
// increment. Once dispatch succeeds the caller is never re-rejected;
// settlement failures are logged and swallowed.
type Pipeline struct {
	auth       Authenticator
	limiter    *ratelimit.Limiter
	prices     *pricing.Table
	ledger     *appbilling.LedgerService
	usage      *appbilling.UsageService
	dispatcher Dispatcher
	logger     *zap.Logger
}

// PipelineConfig contains the collaborators of a Pipeline
type PipelineConfig struct {
	Authenticator Authenticator
	Limiter       *ratelimit.Limiter
	Prices        *pricing.Table
	Ledger        *appbilling.LedgerService
	Usage         *appbilling.UsageService
	Dispatcher    Dispatcher
	Logger        *zap.Logger
}

// NewPipeline creates a new admission pipeline
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{
		auth:       cfg.Authenticator,
		limiter:    cfg.Limiter,
		prices:     cfg.Prices,
		ledger:     cfg.Ledger,
		usage:      cfg.Usage,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
	}
}

// Process admits, dispatches and settles one chat completion request. The
// returned decision carries the rate limit metadata for response headers
// and is populated on every path that reaches the rate check.
func (p *Pipeline) Process(ctx context.Context, rawKey string, req Request) (*upstream.Result, ratelimit.Decision, error) {
	var decision ratelimit.Decision

	principal, err := p.auth.Authenticate(ctx, rawKey)
	if err != nil {
		return nil, decision, err
	}

	decision, err = p.checkRateLimit(ctx, principal)
	if err != nil {
		return nil, decision, err
	}

	price, err := p.prices.Lookup(req.Model)
	if err != nil {
		return nil, decision, err
	}

	margin := p.usage.MarginFor(ctx, principal.AccountID)
	estimate, err := p.estimate(req, margin)
	if err != nil {
		return nil, decision, err
	}

	if err := p.ledger.CheckBalance(ctx, principal.AccountID, estimate); err != nil {
		p.requestLogger(ctx).Info("request rejected for insufficient credits",
			zap.String("account_id", principal.AccountID.String()),
			zap.String("model", req.Model),
			zap.String("estimate", estimate.String()),
			zap.String("stage", string(stageCreditEstimated)))
		return nil, decision, err
	}

	// Dispatch and settlement must survive caller disconnect: once the
	// provider call starts, only the upstream timeout bounds it, and a
	// completed generation is always billed.
	settleCtx := context.WithoutCancel(ctx)

	started := time.Now()
	result, err := p.dispatcher.ChatCompletions(settleCtx, req.Body)
	latency := time.Since(started)

	if err != nil {
		p.usage.RecordError(settleCtx, principal.AccountID, req.Model, price.Provider, latency)
		return nil, decision, &DownstreamError{Err: err}
	}

	if !result.Succeeded() {
		// Provider rejected the call: nothing consumed, nothing billed,
		// the provider's response is proxied through
		p.usage.RecordError(settleCtx, principal.AccountID, req.Model, price.Provider, latency)
		return result, decision, nil
	}

	p.settle(settleCtx, principal, req.Model, price.Provider, result, margin, latency)
	return result, decision, nil
}

func (p *Pipeline) checkRateLimit(ctx context.Context, principal *Principal) (ratelimit.Decision, error) {
	limit := principal.Tier.RequestsPerMinute()
	// A nil limiter means limiting is disabled by configuration
	if p.limiter == nil {
		return ratelimit.Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	decision, err := p.limiter.Allow(ctx, principal.AccountID.String(), limit)
	if err != nil {
		// A broken counter store must not take the gateway down with it
		p.requestLogger(ctx).Warn("rate limit check failed, admitting request",
			zap.String("account_id", principal.AccountID.String()),
			zap.Error(err))
		return ratelimit.Decision{Allowed: true, Limit: limit}, nil
	}
	if !decision.Allowed {
		return decision, &RateLimitError{Decision: decision}
	}
	return decision, nil
}

func (p *Pipeline) estimate(req Request, margin billing.MarginConfig) (decimal.Decimal, error) {
	worstCase, err := p.prices.WorstCaseCostUSD(req.Model, req.PromptTokens, req.MaxOutputTokens)
	if err != nil {
		return decimal.Zero, err
	}
	return billing.CalculateCredits(req.Model, worstCase, margin), nil
}

// settle charges the settled usage and writes the audit row. Neither
// failure reaches the caller: the response was already earned.
func (p *Pipeline) settle(
	ctx context.Context,
	principal *Principal,
	model, provider string,
	result *upstream.Result,
	margin billing.MarginConfig,
	latency time.Duration,
) {
	log := p.requestLogger(ctx)

	costUSD, err := p.prices.CostUSD(model, result.TokensIn, result.TokensOut)
	if err != nil {
		log.Error("failed to price settled usage",
			zap.String("account_id", principal.AccountID.String()),
			zap.String("model", model),
			zap.String("stage", string(stageBilled)),
			zap.Error(err))
		return
	}
	credits := billing.CalculateCredits(model, costUSD, margin)

	if _, err := p.ledger.Charge(ctx, principal.AccountID, credits); err != nil {
		log.Error("failed to charge settled usage",
			zap.String("account_id", principal.AccountID.String()),
			zap.String("model", model),
			zap.String("credits", credits.String()),
			zap.String("stage", string(stageBilled)),
			zap.Error(err))
	}

	if err := p.usage.RecordSuccess(ctx, principal.AccountID, model, provider,
		result.TokensIn, result.TokensOut, costUSD, credits, latency); err != nil {
		log.Error("failed to write usage record",
			zap.String("account_id", principal.AccountID.String()),
			zap.String("model", model),
			zap.String("stage", string(stageLogged)),
			zap.Error(err))
	}
}

// requestLogger enriches the pipeline logger with the request id carried
// on the context. Settlement contexts keep their values, so post-dispatch
// logs stay correlated even after the caller disconnects.
func (p *Pipeline) requestLogger(ctx context.Context) *zap.Logger {
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		return p.logger.With(zap.String("request_id", requestID))
	}
	return p.logger
}
