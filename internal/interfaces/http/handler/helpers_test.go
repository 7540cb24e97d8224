package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/domain/identity"
	"github.com/creditgw/backend/internal/domain/shared"
	"github.com/creditgw/backend/internal/infrastructure/upstream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testKeySecret = "testpref-rest-of-the-secret"

// memAccounts is an in-memory billing.AccountRepository
type memAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*billing.Account
}

func newMemAccounts(accounts ...*billing.Account) *memAccounts {
	m := &memAccounts{accounts: make(map[uuid.UUID]*billing.Account)}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *memAccounts) FindByID(ctx context.Context, id uuid.UUID) (*billing.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	snapshot := *account
	return &snapshot, nil
}

func (m *memAccounts) FindByCustomerID(ctx context.Context, customerID string) (*billing.Account, error) {
	return nil, shared.ErrNotFound
}

func (m *memAccounts) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*billing.Account, error) {
	return nil, shared.ErrNotFound
}

func (m *memAccounts) Save(ctx context.Context, account *billing.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *memAccounts) DeductBalance(ctx context.Context, id uuid.UUID, credits decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return decimal.Zero, shared.ErrNotFound
	}
	account.Balance = account.Balance.Sub(credits)
	return account.Balance, nil
}

func (m *memAccounts) AddBalance(ctx context.Context, id uuid.UUID, credits decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return decimal.Zero, shared.ErrNotFound
	}
	account.Balance = account.Balance.Add(credits)
	return account.Balance, nil
}

func (m *memAccounts) ReplaceBalance(ctx context.Context, id uuid.UUID, credits decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	account.Balance = credits
	return nil
}

// memCredentials is an in-memory identity.CredentialRepository
type memCredentials struct {
	byPrefix map[string]*identity.ApiCredential
}

func newMemCredentials(credentials ...*identity.ApiCredential) *memCredentials {
	m := &memCredentials{byPrefix: make(map[string]*identity.ApiCredential)}
	for _, credential := range credentials {
		m.byPrefix[credential.Prefix] = credential
	}
	return m
}

func (m *memCredentials) FindByPrefix(ctx context.Context, prefix string) (*identity.ApiCredential, error) {
	credential, ok := m.byPrefix[prefix]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return credential, nil
}

func (m *memCredentials) FindByAccount(ctx context.Context, accountID uuid.UUID) ([]*identity.ApiCredential, error) {
	return nil, nil
}

func (m *memCredentials) RefreshCachedTier(ctx context.Context, accountID uuid.UUID, tier billing.Tier) error {
	return nil
}

// memUsageRecords is an in-memory billing.UsageRecordRepository
type memUsageRecords struct {
	mu      sync.Mutex
	records []*billing.UsageRecord
}

func (m *memUsageRecords) Create(ctx context.Context, record *billing.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *memUsageRecords) FindByAccount(ctx context.Context, accountID uuid.UUID, filter billing.UsageRecordFilter) ([]*billing.UsageRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*billing.UsageRecord
	for _, record := range m.records {
		if record.AccountID == accountID {
			out = append(out, record)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memUsageRecords) SummarizeByAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) (*billing.UsageSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := &billing.UsageSummary{AccountID: accountID, From: from, To: to,
		CostUSD: decimal.Zero, CreditsSpent: decimal.Zero}
	for _, record := range m.records {
		if record.AccountID != accountID {
			continue
		}
		summary.Requests++
		summary.TokensIn += record.TokensIn
		summary.TokensOut += record.TokensOut
		summary.CostUSD = summary.CostUSD.Add(record.CostUSD)
		summary.CreditsSpent = summary.CreditsSpent.Add(record.CreditsCharged)
	}
	return summary, nil
}

// memMargins always reports no stored config
type memMargins struct{}

func (memMargins) FindByAccount(ctx context.Context, accountID uuid.UUID) (*billing.MarginConfig, error) {
	return nil, shared.ErrNotFound
}

func (memMargins) Save(ctx context.Context, accountID uuid.UUID, cfg *billing.MarginConfig) error {
	return nil
}

// scriptedDispatcher returns a fixed provider outcome
type scriptedDispatcher struct {
	result *upstream.Result
	err    error
}

func (d *scriptedDispatcher) ChatCompletions(ctx context.Context, body []byte) (*upstream.Result, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.result, nil
}

func testAPIKey() string {
	return "sk-" + testKeySecret
}

func upstreamResult(status int, body []byte, tokensIn, tokensOut int64) *upstream.Result {
	return &upstream.Result{StatusCode: status, Body: body, TokensIn: tokensIn, TokensOut: tokensOut}
}

func testCredential(accountID uuid.UUID, tier billing.Tier) *identity.ApiCredential {
	return &identity.ApiCredential{
		BaseEntity: shared.NewBaseEntity(),
		AccountID:  accountID,
		Prefix:     testKeySecret[:identity.KeyPrefixLength],
		SecretHash: identity.HashSecret(testKeySecret),
		Active:     true,
		CachedTier: tier,
	}
}
