package subscription

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// SandboxProvider is an in-process PaymentProvider for development and tests.
// Every charge succeeds with a sequential transaction ID ("tx_1", "tx_2", ...)
// unless the provider is configured to decline or to be unavailable. In
// checkout mode charges stay pending and the customer is assumed to pay
// before Confirm is called.
type SandboxProvider struct {
	mu          sync.Mutex
	unavailable bool
	decline     string
	checkoutURL string
	seq         int
	charges     []ChargeRequest
	issued      map[string]ChargeRequest
}

// SandboxOption configures a SandboxProvider.
type SandboxOption func(*SandboxProvider)

// WithSandboxUnavailable makes Initialize report the payment method as unavailable.
func WithSandboxUnavailable() SandboxOption {
	return func(p *SandboxProvider) {
		p.unavailable = true
	}
}

// WithSandboxDecline makes every charge fail with the given reason.
func WithSandboxDecline(reason string) SandboxOption {
	return func(p *SandboxProvider) {
		p.decline = reason
	}
}

// WithSandboxCheckout makes charges pending with a checkout link under url.
func WithSandboxCheckout(url string) SandboxOption {
	return func(p *SandboxProvider) {
		p.checkoutURL = url
	}
}

// NewSandboxProvider creates a sandbox payment provider.
func NewSandboxProvider(opts ...SandboxOption) *SandboxProvider {
	p := &SandboxProvider{issued: make(map[string]ChargeRequest)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SandboxProvider) Initialize(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.unavailable, nil
}

func (p *SandboxProvider) Charge(ctx context.Context, req ChargeRequest) (*PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.charges = append(p.charges, req)

	if p.decline != "" {
		return &PaymentResult{Success: false, Error: p.decline}, nil
	}

	p.seq++
	txID := fmt.Sprintf("tx_%d", p.seq)
	p.issued[txID] = req

	if p.checkoutURL != "" {
		return &PaymentResult{
			Pending:       true,
			TransactionID: txID,
			CheckoutURL:   p.checkoutURL + "?txn=" + txID,
		}, nil
	}

	return &PaymentResult{Success: true, TransactionID: txID}, nil
}

// Confirm accepts any transaction this sandbox issued for the same user
// and plan.
func (p *SandboxProvider) Confirm(ctx context.Context, req ConfirmRequest) (*PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	charge, ok := p.issued[req.TransactionID]
	if !ok {
		return &PaymentResult{Success: false, Error: "unknown transaction"}, nil
	}
	if charge.UserID != req.UserID || charge.PlanID != req.PlanID {
		return &PaymentResult{
			Success:       false,
			TransactionID: req.TransactionID,
			Error:         ErrTransactionMismatch.Error(),
		}, nil
	}
	return &PaymentResult{Success: true, TransactionID: req.TransactionID}, nil
}

// Charges returns every charge attempted so far.
func (p *SandboxProvider) Charges() []ChargeRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.charges)
}
