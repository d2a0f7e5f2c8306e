package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/stationpay/mpesa-gateway/app/models"
	"github.com/stationpay/mpesa-gateway/app/repository"
	"github.com/stationpay/mpesa-gateway/internal/pkg/mpesa"
	"gorm.io/gorm"
)

// ProviderClient is the slice of the Daraja client the service uses.
type ProviderClient interface {
	STKPush(ctx context.Context, token string, push *mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
	STKQuery(ctx context.Context, token, shortCode, passKey, checkoutRequestID string) (*mpesa.STKQueryResponse, error)
}

// TokenProvider hands out valid access tokens for a credential set.
type TokenProvider interface {
	GetToken(ctx context.Context, creds *mpesa.Credentials, key string) (string, error)
}

// CredentialSource resolves the active credential set for a station.
type CredentialSource interface {
	Resolve(ctx context.Context, stationID *uint) (*mpesa.Credentials, error)
}

// Notifier is told about applied terminal transitions; implementations are
// best-effort and must not block.
type Notifier interface {
	PaymentResult(ctx context.Context, intent *models.PaymentIntent, resultCode int)
}

// Config tunes the stale-intent sweep.
type Config struct {
	// StaleAfter is how long an intent may sit pending before the sweep
	// queries the provider for it.
	StaleAfter time.Duration
	// FailAfter is the outer age bound: Daraja drops state after a window,
	// so older pending intents are failed synthetically.
	FailAfter time.Duration
	// BatchSize bounds intents handled per sweep run.
	BatchSize int
	// Pacing is the delay between per-intent provider queries.
	Pacing time.Duration
}

func (c *Config) withDefaults() {
	if c.StaleAfter <= 0 {
		c.StaleAfter = 2 * time.Minute
	}
	if c.FailAfter <= 0 {
		c.FailAfter = 30 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Pacing <= 0 {
		c.Pacing = time.Second
	}
}

const timedOutResultDesc = "timeout - no response"

// Service drives the payment-intent lifecycle: initiation, reconciliation of
// provider outcomes, status queries, and the stale sweep.
type Service struct {
	intents  repository.PaymentIntentRepository
	sales    repository.SaleRepository
	client   ProviderClient
	tokens   TokenProvider
	creds    CredentialSource
	notifier Notifier
	validate *validator.Validate
	cfg      Config
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier attaches a push-notification sink for terminal transitions.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithConfig overrides the sweep tuning.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// NewService creates the payment service from its collaborators.
func NewService(repos *repository.Repositories, client ProviderClient, tokens TokenProvider, creds CredentialSource, opts ...Option) *Service {
	s := &Service{
		intents:  repos.Intent,
		sales:    repos.Sale,
		client:   client,
		tokens:   tokens,
		creds:    creds,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.withDefaults()
	return s
}

// Initiate submits an STK push and records the pending intent. The provider
// call is the point of no return: everything after a successful submission is
// best-effort and the acceptance is reported to the caller regardless.
func (s *Service) Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	creds, err := s.creds.Resolve(ctx, req.StationID)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.GetToken(ctx, creds, creds.CacheKey(req.StationID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	account := strings.TrimSpace(req.Account)
	if account == "" {
		account = fmt.Sprintf("STN-%d", time.Now().Unix())
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Fuel payment"
	}

	password, timestamp := mpesa.Password(creds.ShortCode, creds.PassKey, time.Now())
	resp, err := s.client.STKPush(ctx, token, &mpesa.STKPushRequest{
		BusinessShortCode: creds.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   mpesa.TransactionTypeBuyGoods,
		Amount:            req.Amount,
		PartyA:            phone,
		PartyB:            creds.TillNumber,
		PhoneNumber:       phone,
		CallBackURL:       creds.CallbackURL,
		AccountReference:  account,
		TransactionDesc:   description,
	})
	if err != nil {
		var apiErr *mpesa.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %s", ErrProviderRejected, apiErr.Message)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if resp.ResponseCode != "0" {
		return nil, fmt.Errorf("%w: %s", ErrProviderRejected, resp.ResponseDescription)
	}
	if resp.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: push accepted but checkout request id missing", ErrProviderRejected)
	}

	intent := &models.PaymentIntent{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		StationID:         req.StationID,
		Phone:             phone,
		Amount:            req.Amount,
		AccountRef:        account,
		Status:            models.PaymentStatusPending,
		FCMToken:          req.FCMToken,
	}
	if err := s.intents.Create(intent); err != nil {
		// The push already went out; the callback or the sweep will recreate
		// the row if needed. The caller still gets the acceptance.
		log.Errorf("[Payments] intent save failed for %s: %v", resp.CheckoutRequestID, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	s.createPendingSale(req, phone, resp.CheckoutRequestID)

	message := resp.CustomerMessage
	if message == "" {
		message = "Enter M-Pesa PIN on your phone"
	}
	return &InitiateResult{
		IntentID:          intent.ID,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   message,
	}, nil
}

func (s *Service) createPendingSale(req *InitiateRequest, phone, checkoutRequestID string) {
	if req.PumpShiftID == 0 || req.PumpID == 0 || req.AttendantID == 0 {
		return
	}
	sale := &models.Sale{
		SaleNo:            fmt.Sprintf("SALE-%d-%d", time.Now().Unix(), req.PumpID),
		PumpShiftID:       req.PumpShiftID,
		PumpID:            req.PumpID,
		AttendantID:       req.AttendantID,
		StationID:         req.StationID,
		Amount:            req.Amount,
		CustomerPhone:     phone,
		TransactionStatus: models.SaleStatusPending,
		CheckoutRequestID: checkoutRequestID,
	}
	if err := s.sales.Create(sale); err != nil {
		log.Errorf("[Payments] sale save failed for %s: %v", checkoutRequestID, err)
	}
}

// Reconcile merges a terminal outcome into the stored intent. It is shared by
// the webhook handler and the stale sweep and is safe to call any number of
// times with the same or conflicting outcomes: the first terminal result
// wins, later ones may only fill a missing receipt. The returned bool reports
// whether a transition (or creation) was actually applied.
func (s *Service) Reconcile(ctx context.Context, out Outcome) (bool, error) {
	if out.CheckoutRequestID == "" {
		return false, fmt.Errorf("%w: missing checkout request id", ErrValidation)
	}

	status, desc := terminalStatus(out.ResultCode, out.ResultDesc)
	completedAt := time.Now()
	if out.TransactionTime != nil {
		completedAt = *out.TransactionTime
	}

	applied, err := s.intents.FinalizePending(out.CheckoutRequestID, repository.IntentFinalization{
		Status:      status,
		ResultDesc:  desc,
		Receipt:     out.Receipt,
		CompletedAt: completedAt,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if !applied {
		existing, gerr := s.intents.GetByCheckoutRequestID(out.CheckoutRequestID)
		switch {
		case errors.Is(gerr, gorm.ErrRecordNotFound):
			// The callback outran the initiator's insert. Store the terminal
			// result now so it is never lost.
			created, cerr := s.intents.CreateIfNotExists(&models.PaymentIntent{
				CheckoutRequestID: out.CheckoutRequestID,
				MerchantRequestID: out.MerchantRequestID,
				Phone:             out.Phone,
				Amount:            out.Amount,
				Status:            status,
				MpesaReceipt:      out.Receipt,
				ResultDesc:        desc,
				CompletedAt:       &completedAt,
			})
			if cerr != nil {
				return false, fmt.Errorf("%w: %v", ErrPersistence, cerr)
			}
			applied = created
			if !created {
				// Lost the creation race; at most enrich the winner's receipt.
				filled, ferr := s.intents.FillReceipt(out.CheckoutRequestID, out.Receipt)
				if ferr != nil {
					return false, fmt.Errorf("%w: %v", ErrPersistence, ferr)
				}
				if filled {
					s.mirrorReceipt(out.CheckoutRequestID, out.Receipt)
				}
			}
		case gerr != nil:
			return false, fmt.Errorf("%w: %v", ErrPersistence, gerr)
		default:
			// Already terminal: never downgrade, only fill a missing receipt.
			if existing.MpesaReceipt == "" && out.Receipt != "" {
				filled, ferr := s.intents.FillReceipt(out.CheckoutRequestID, out.Receipt)
				if ferr != nil {
					return false, fmt.Errorf("%w: %v", ErrPersistence, ferr)
				}
				if filled {
					s.mirrorReceipt(out.CheckoutRequestID, out.Receipt)
				}
			}
		}
	}

	// The ledger mirrors the stored intent, never the incoming result: a
	// conflicting late outcome must not rewrite the sale's status.
	if applied {
		s.mirrorSale(out.CheckoutRequestID, status, out.Receipt)
	}

	if applied && s.notifier != nil {
		if intent, gerr := s.intents.GetByCheckoutRequestID(out.CheckoutRequestID); gerr == nil {
			s.notifier.PaymentResult(ctx, intent, out.ResultCode)
		}
	}
	return applied, nil
}

// mirrorSale propagates the outcome onto the POS ledger. Failures are logged
// and swallowed; the ledger belongs to another subsystem.
func (s *Service) mirrorSale(checkoutRequestID, status, receipt string) {
	if _, err := s.sales.UpdateStatusByCheckout(checkoutRequestID, strings.ToUpper(status), receipt); err != nil {
		log.Errorf("[Payments] sale mirror failed for %s: %v", checkoutRequestID, err)
	}
}

// mirrorReceipt carries an enriched receipt onto the ledger while keeping the
// sale's status in step with the stored intent.
func (s *Service) mirrorReceipt(checkoutRequestID, receipt string) {
	intent, err := s.intents.GetByCheckoutRequestID(checkoutRequestID)
	if err != nil {
		log.Errorf("[Payments] receipt mirror lookup failed for %s: %v", checkoutRequestID, err)
		return
	}
	s.mirrorSale(checkoutRequestID, intent.Status, receipt)
}

// Status returns the point-in-time view of an intent. An unknown checkout
// request id yields a synthetic pending view: the initiator's write may not
// have landed yet, which is indistinguishable from "still processing" for
// the caller.
func (s *Service) Status(ctx context.Context, checkoutRequestID string) (*StatusView, error) {
	_ = ctx
	if strings.TrimSpace(checkoutRequestID) == "" {
		return nil, fmt.Errorf("%w: checkout_request_id is required", ErrValidation)
	}

	intent, err := s.intents.GetByCheckoutRequestID(checkoutRequestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &StatusView{
			Status:            models.PaymentStatusPending,
			ResultDesc:        "Awaiting customer response",
			CheckoutRequestID: checkoutRequestID,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	view := &StatusView{
		Found:             true,
		Status:            intent.Status,
		ResultDesc:        intent.ResultDesc,
		CheckoutRequestID: intent.CheckoutRequestID,
		MerchantRequestID: intent.MerchantRequestID,
		Phone:             intent.Phone,
		Amount:            intent.Amount,
		AccountRef:        intent.AccountRef,
		Receipt:           intent.MpesaReceipt,
		CreatedAt:         &intent.CreatedAt,
		CompletedAt:       intent.CompletedAt,
	}
	if code, ok := resultCodeForStatus(intent.Status); ok {
		view.ResultCode = &code
	}
	if view.ResultDesc == "" {
		view.ResultDesc = "Awaiting customer PIN entry"
	}
	return view, nil
}

// resultCodeForStatus maps the stored status back to the code values the
// provider itself uses, so clients decode callback and poll results the same
// way.
func resultCodeForStatus(status string) (int, bool) {
	switch status {
	case models.PaymentStatusCompleted:
		return mpesa.ResultCodeSuccess, true
	case models.PaymentStatusCancelled:
		return mpesa.ResultCodeUserCancelled, true
	case models.PaymentStatusFailed:
		return mpesa.ResultCodeInsufficientFunds, true
	default:
		return 0, false
	}
}

// SweepStale resolves intents stuck pending past the grace threshold: it asks
// Daraja for their true state and reconciles conclusive answers, fails
// intents older than the outer bound, and leaves the rest for the next run.
func (s *Service) SweepStale(ctx context.Context) (checked, updated int, err error) {
	now := time.Now()
	intents, err := s.intents.ListStalePending(now.Add(-s.cfg.StaleAfter), s.cfg.BatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	for i, intent := range intents {
		if i > 0 {
			select {
			case <-time.After(s.cfg.Pacing):
			case <-ctx.Done():
				return checked, updated, ctx.Err()
			}
		}
		checked++

		if now.Sub(intent.CreatedAt) > s.cfg.FailAfter {
			if s.failTimedOut(ctx, &intent) {
				updated++
			}
			continue
		}

		creds, cerr := s.creds.Resolve(ctx, intent.StationID)
		if cerr != nil {
			log.Warnf("[Poller] credentials for %s: %v", intent.CheckoutRequestID, cerr)
			continue
		}
		token, terr := s.tokens.GetToken(ctx, creds, creds.CacheKey(intent.StationID))
		if terr != nil {
			log.Warnf("[Poller] token for %s: %v", intent.CheckoutRequestID, terr)
			continue
		}

		resp, qerr := s.client.STKQuery(ctx, token, creds.ShortCode, creds.PassKey, intent.CheckoutRequestID)
		if qerr != nil {
			// Includes "transaction is being processed" responses; the intent
			// stays pending for a later run.
			log.Infof("[Poller] query for %s inconclusive: %v", intent.CheckoutRequestID, qerr)
			continue
		}
		out, ok := OutcomeFromQuery(intent.CheckoutRequestID, resp)
		if !ok {
			continue
		}

		applied, rerr := s.Reconcile(ctx, out)
		if rerr != nil {
			log.Errorf("[Poller] reconcile for %s: %v", intent.CheckoutRequestID, rerr)
			continue
		}
		if applied {
			updated++
		}
	}
	return checked, updated, nil
}

// failTimedOut marks an over-aged pending intent failed; the provider drops
// push state after a window and will never call back for it.
func (s *Service) failTimedOut(ctx context.Context, intent *models.PaymentIntent) bool {
	applied, err := s.intents.FinalizePending(intent.CheckoutRequestID, repository.IntentFinalization{
		Status:      models.PaymentStatusFailed,
		ResultDesc:  timedOutResultDesc,
		CompletedAt: time.Now(),
	})
	if err != nil {
		log.Errorf("[Poller] timeout for %s: %v", intent.CheckoutRequestID, err)
		return false
	}
	if applied {
		s.mirrorSale(intent.CheckoutRequestID, models.SaleStatusFailed, "")
		if s.notifier != nil {
			if fresh, gerr := s.intents.GetByCheckoutRequestID(intent.CheckoutRequestID); gerr == nil {
				s.notifier.PaymentResult(ctx, fresh, mpesa.ResultCodeDSTimeout)
			}
		}
	}
	return applied
}
