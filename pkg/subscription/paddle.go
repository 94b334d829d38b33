package subscription

import (
	"context"
	"fmt"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle payment provider.
type PaddleConfig struct {
	APIKey      string `env:"PADDLE_API_KEY"`
	Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"sandbox"`
	SuccessURL  string `env:"PADDLE_SUCCESS_URL"`
}

// Enabled reports whether Paddle credentials are configured.
func (c PaddleConfig) Enabled() bool {
	return c.APIKey != ""
}

// transactionsClient is the slice of the Paddle SDK the provider uses.
type transactionsClient interface {
	CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error)
	GetTransaction(ctx context.Context, req *paddle.GetTransactionRequest) (*paddle.Transaction, error)
}

// PaddleProvider implements PaymentProvider on top of Paddle transactions.
// Charge opens a transaction against the plan's catalog price that the
// customer pays through Paddle Checkout; it stays pending until Paddle marks
// it paid, which Confirm checks.
type PaddleProvider struct {
	client transactionsClient
	config PaddleConfig
}

// NewPaddleProvider creates a new Paddle payment provider.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(config.Environment) {
	case "sandbox", "":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProviderEnvironment, config.Environment)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleProvider{
		client: client.TransactionsClient,
		config: config,
	}, nil
}

// Initialize reports whether the Paddle client is ready.
func (p *PaddleProvider) Initialize(ctx context.Context) (bool, error) {
	return p.client != nil, nil
}

// Charge creates a Paddle transaction for the plan's price.
// Provider failures are reported as an unsuccessful result.
func (p *PaddleProvider) Charge(ctx context.Context, req ChargeRequest) (*PaymentResult, error) {
	if req.PriceID == "" {
		return nil, ErrMissingPriceID
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})

	// custom_data lets the transaction be traced back to the user and plan
	transactionReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"user_id":    req.UserID.String(),
			"plan_id":    req.PlanID,
			"amount_usd": req.AmountUSD.StringFixed(2),
		},
	}

	if p.config.SuccessURL != "" {
		transactionReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(p.config.SuccessURL),
		}
	}

	transaction, err := p.client.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return &PaymentResult{Success: false, Error: err.Error()}, nil
	}

	return transactionResult(transaction), nil
}

// Confirm fetches the transaction and reports whether it was paid. A
// transaction opened for another user or plan is never accepted.
func (p *PaddleProvider) Confirm(ctx context.Context, req ConfirmRequest) (*PaymentResult, error) {
	if req.TransactionID == "" {
		return nil, ErrMissingTxID
	}

	transaction, err := p.client.GetTransaction(ctx, &paddle.GetTransactionRequest{
		TransactionID: req.TransactionID,
	})
	if err != nil {
		return &PaymentResult{Success: false, TransactionID: req.TransactionID, Error: err.Error()}, nil
	}

	if customValue(transaction.CustomData, "user_id") != req.UserID.String() ||
		customValue(transaction.CustomData, "plan_id") != req.PlanID {
		return &PaymentResult{
			Success:       false,
			TransactionID: transaction.ID,
			Error:         ErrTransactionMismatch.Error(),
		}, nil
	}

	return transactionResult(transaction), nil
}

// transactionResult maps a Paddle transaction status onto a payment result.
// Only paid and completed transactions count as collected money.
func transactionResult(t *paddle.Transaction) *PaymentResult {
	result := &PaymentResult{TransactionID: t.ID}
	if t.Checkout != nil && t.Checkout.URL != nil {
		result.CheckoutURL = *t.Checkout.URL
	}

	switch t.Status {
	case paddle.TransactionStatusPaid, paddle.TransactionStatusCompleted:
		result.Success = true
	case paddle.TransactionStatusDraft, paddle.TransactionStatusReady, paddle.TransactionStatusBilled:
		result.Pending = true
	default:
		result.Error = fmt.Sprintf("transaction %s", t.Status)
	}
	return result
}

func customValue(data paddle.CustomData, key string) string {
	v, _ := data[key].(string)
	return v
}
