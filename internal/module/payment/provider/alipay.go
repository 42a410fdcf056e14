package provider

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-pay/gopay"
	"github.com/go-pay/gopay/alipay"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bookwise/payments/internal/module/payment/domain"
	errs "github.com/bookwise/payments/internal/shared/errors"
)

const AlipayName = "alipay"

// AlipayConfig holds Alipay open-platform credentials.
type AlipayConfig struct {
	AppID           string
	PrivateKey      string
	AlipayPublicKey string
	IsProd          bool
}

// AlipayStrategy implements Strategy for Alipay QR/offsite payments.
// The out_trade_no we generate is the transaction id; all later calls and
// notifications key on it.
type AlipayStrategy struct {
	config *AlipayConfig
	client *alipay.Client
	logger *zap.Logger
}

func NewAlipayStrategy(config *AlipayConfig, logger *zap.Logger) (*AlipayStrategy, error) {
	client, err := alipay.NewClient(config.AppID, config.PrivateKey, config.IsProd)
	if err != nil {
		return nil, fmt.Errorf("create alipay client: %w", err)
	}
	client.AutoVerifySign([]byte(config.AlipayPublicKey))
	return &AlipayStrategy{config: config, client: client, logger: logger}, nil
}

func (s *AlipayStrategy) Name() string {
	return AlipayName
}

func (s *AlipayStrategy) Capabilities() Capabilities {
	return Capabilities{
		Currencies: []string{"CNY"},
		Countries:  []string{"CN"},
		FeeBps:     60,
	}
}

func (s *AlipayStrategy) CreatePaymentIntent(ctx context.Context, data *CreateIntentData) (*PaymentResult, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if !s.Capabilities().SupportsCurrency(data.Currency) {
		return nil, errs.InvalidCurrency("alipay only settles CNY")
	}

	outTradeNo := data.Metadata["order_id"]
	if outTradeNo == "" {
		outTradeNo = uuid.NewString()
	}
	subject := data.Description
	if subject == "" {
		subject = "bookwise booking"
	}

	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", outTradeNo).
		Set("total_amount", yuanFromMinor(data.Amount)).
		Set("subject", subject)

	resp, err := s.client.TradePrecreate(ctx, bm)
	if err != nil {
		s.logger.Error("alipay precreate failed", zap.Error(err))
		return nil, errs.ProviderUnavailable(AlipayName, err)
	}
	if resp.Response.Code != "10000" {
		return nil, errs.ProviderRejected(AlipayName, resp.Response.SubMsg)
	}

	s.logger.Info("alipay trade precreated", zap.String("out_trade_no", outTradeNo))

	return &PaymentResult{
		Success:        true,
		TransactionID:  outTradeNo,
		Status:         domain.StatusRequiresAction,
		Amount:         data.Amount,
		Currency:       "CNY",
		RequiresAction: true,
		NextAction:     &NextAction{Type: "qr_code", QRCode: resp.Response.QrCode},
	}, nil
}

// ConfirmPaymentIntent completes the offsite flow by querying the trade:
// the buyer confirms inside the Alipay app, not through our API.
func (s *AlipayStrategy) ConfirmPaymentIntent(ctx context.Context, transactionID, _ string) (*PaymentResult, error) {
	return s.GetTransactionStatus(ctx, transactionID)
}

// ProcessPayment cannot skip the buyer-side scan; it behaves as create.
func (s *AlipayStrategy) ProcessPayment(ctx context.Context, data *CreateIntentData) (*PaymentResult, error) {
	return s.CreatePaymentIntent(ctx, data)
}

func (s *AlipayStrategy) Refund(ctx context.Context, data *RefundData) (*RefundResult, error) {
	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", data.TransactionID).
		Set("refund_amount", yuanFromMinor(data.Amount)).
		Set("out_request_no", uuid.NewString())
	if data.Reason != "" {
		bm.Set("refund_reason", data.Reason)
	}

	resp, err := s.client.TradeRefund(ctx, bm)
	if err != nil {
		s.logger.Error("alipay refund failed", zap.Error(err))
		return nil, errs.ProviderUnavailable(AlipayName, err)
	}
	if resp.Response.Code != "10000" {
		return nil, errs.ProviderRejected(AlipayName, resp.Response.SubMsg)
	}

	return &RefundResult{Success: true, RefundID: resp.Response.TradeNo, Amount: data.Amount}, nil
}

func (s *AlipayStrategy) GetTransactionStatus(ctx context.Context, transactionID string) (*PaymentResult, error) {
	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", transactionID)

	resp, err := s.client.TradeQuery(ctx, bm)
	if err != nil {
		s.logger.Error("alipay query failed", zap.Error(err))
		return nil, errs.ProviderUnavailable(AlipayName, err)
	}
	if resp.Response.Code != "10000" {
		return nil, errs.ProviderRejected(AlipayName, resp.Response.SubMsg)
	}

	amount, err := minorFromYuan(resp.Response.TotalAmount)
	if err != nil {
		s.logger.Warn("alipay reported unparseable amount",
			zap.String("out_trade_no", transactionID),
			zap.String("total_amount", resp.Response.TotalAmount))
	}

	return &PaymentResult{
		Success:       true,
		TransactionID: transactionID,
		Status:        mapAlipayTradeStatus(resp.Response.TradeStatus),
		Amount:        amount,
		Currency:      "CNY",
	}, nil
}

// VerifyWebhookSignature is deferred to ParseWebhookEvent: Alipay carries
// the signature as a field of the form body, not a header, so it is
// checked exactly once while parsing.
func (s *AlipayStrategy) VerifyWebhookSignature(_ []byte, _ string) error {
	return nil
}

func (s *AlipayStrategy) ParseWebhookEvent(ctx context.Context, payload []byte, _ map[string]string) (*WebhookEvent, error) {
	bm, err := parseAlipayNotify(payload)
	if err != nil {
		return nil, errs.InvalidSignature(AlipayName, err)
	}
	ok, err := alipay.VerifySign(s.config.AlipayPublicKey, bm)
	if err != nil || !ok {
		return nil, errs.InvalidSignature(AlipayName, err)
	}

	var amount int64
	if v := bm.Get("total_amount"); v != "" {
		if amount, err = minorFromYuan(v); err != nil {
			return nil, errs.Internal("malformed alipay notification amount", err)
		}
	}

	event := &WebhookEvent{
		ID:            bm.Get("notify_id"),
		Provider:      AlipayName,
		RawType:       bm.Get("trade_status"),
		TransactionID: bm.Get("out_trade_no"),
		Amount:        amount,
		Currency:      "CNY",
		Category:      EventUnknown,
	}

	switch bm.Get("trade_status") {
	case "TRADE_SUCCESS", "TRADE_FINISHED":
		event.Category = EventPaymentSucceeded
	case "TRADE_CLOSED":
		event.Category = EventPaymentFailed
		event.FailureCode = "trade_closed"
		event.FailureMessage = "trade closed without full payment"
	}

	return event, nil
}

// parseAlipayNotify rebuilds the form-urlencoded notification as a request
// because the SDK only parses *http.Request.
func parseAlipayNotify(payload []byte) (gopay.BodyMap, error) {
	req, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return alipay.ParseNotifyToBodyMap(req)
}

func mapAlipayTradeStatus(tradeStatus string) domain.IntentStatus {
	switch tradeStatus {
	case "WAIT_BUYER_PAY":
		return domain.StatusRequiresAction
	case "TRADE_SUCCESS", "TRADE_FINISHED":
		return domain.StatusSucceeded
	case "TRADE_CLOSED":
		return domain.StatusCanceled
	default:
		return domain.StatusProcessing
	}
}

// yuanFromMinor renders cents as the decimal yuan string Alipay expects.
func yuanFromMinor(amount int64) string {
	return strconv.FormatFloat(float64(amount)/100, 'f', 2, 64)
}

// minorFromYuan parses the decimal yuan string back into cents.
func minorFromYuan(amount string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil {
		return 0, fmt.Errorf("parse yuan amount %q: %w", amount, err)
	}
	return int64(math.Round(f * 100)), nil
}
