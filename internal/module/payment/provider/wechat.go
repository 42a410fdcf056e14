package provider

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-pay/gopay"
	"github.com/go-pay/gopay/wechat/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bookwise/payments/internal/module/payment/domain"
	errs "github.com/bookwise/payments/internal/shared/errors"
)

const WechatName = "wechat"

// WechatConfig holds WeChat Pay v3 merchant credentials.
type WechatConfig struct {
	AppID                 string
	MchID                 string
	SerialNo              string
	APIv3Key              string
	PrivateKey            string // merchant private key, PEM
	WechatPublicKeySerial string // platform certificate serial
	WechatPublicKey       string // platform public key, PEM
	NotifyURL             string
	IsProd                bool
}

// WechatStrategy implements Strategy for WeChat Pay native (QR) payments.
// The out_trade_no we generate is the transaction id.
type WechatStrategy struct {
	config *WechatConfig
	client *wechat.ClientV3
	logger *zap.Logger
}

func NewWechatStrategy(config *WechatConfig, logger *zap.Logger) (*WechatStrategy, error) {
	client, err := wechat.NewClientV3(config.MchID, config.SerialNo, config.APIv3Key, config.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("create wechat client: %w", err)
	}
	if config.IsProd {
		client.SetPlatformCert([]byte(config.WechatPublicKey), config.WechatPublicKeySerial)
	}
	return &WechatStrategy{config: config, client: client, logger: logger}, nil
}

func (s *WechatStrategy) Name() string {
	return WechatName
}

func (s *WechatStrategy) Capabilities() Capabilities {
	return Capabilities{
		Currencies: []string{"CNY"},
		Countries:  []string{"CN"},
		FeeBps:     60,
	}
}

func (s *WechatStrategy) CreatePaymentIntent(ctx context.Context, data *CreateIntentData) (*PaymentResult, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if !s.Capabilities().SupportsCurrency(data.Currency) {
		return nil, errs.InvalidCurrency("wechat pay only settles CNY")
	}

	outTradeNo := data.Metadata["order_id"]
	if outTradeNo == "" {
		outTradeNo = uuid.NewString()
	}
	description := data.Description
	if description == "" {
		description = "bookwise booking"
	}

	bm := make(gopay.BodyMap)
	bm.Set("appid", s.config.AppID)
	bm.Set("mchid", s.config.MchID)
	bm.Set("description", description)
	bm.Set("out_trade_no", outTradeNo)
	bm.Set("time_expire", time.Now().Add(30*time.Minute).Format(time.RFC3339))
	bm.Set("notify_url", s.config.NotifyURL)
	bm.SetBodyMap("amount", func(am gopay.BodyMap) {
		am.Set("total", data.Amount)
		am.Set("currency", "CNY")
	})

	resp, err := s.client.V3TransactionNative(ctx, bm)
	if err != nil {
		s.logger.Error("wechat native transaction failed", zap.Error(err))
		return nil, errs.ProviderUnavailable(WechatName, err)
	}
	if resp.Code != wechat.Success {
		return nil, errs.ProviderRejected(WechatName, resp.Error)
	}

	s.logger.Info("wechat trade created", zap.String("out_trade_no", outTradeNo))

	return &PaymentResult{
		Success:        true,
		TransactionID:  outTradeNo,
		Status:         domain.StatusRequiresAction,
		Amount:         data.Amount,
		Currency:       "CNY",
		RequiresAction: true,
		NextAction:     &NextAction{Type: "qr_code", QRCode: resp.Response.CodeUrl},
	}, nil
}

// ConfirmPaymentIntent completes the offsite flow by querying the trade:
// the payer confirms inside the WeChat app, not through our API.
func (s *WechatStrategy) ConfirmPaymentIntent(ctx context.Context, transactionID, _ string) (*PaymentResult, error) {
	return s.GetTransactionStatus(ctx, transactionID)
}

// ProcessPayment cannot skip the payer-side scan; it behaves as create.
func (s *WechatStrategy) ProcessPayment(ctx context.Context, data *CreateIntentData) (*PaymentResult, error) {
	return s.CreatePaymentIntent(ctx, data)
}

func (s *WechatStrategy) Refund(ctx context.Context, data *RefundData) (*RefundResult, error) {
	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", data.TransactionID)
	bm.Set("out_refund_no", uuid.NewString())
	if data.Reason != "" {
		bm.Set("reason", data.Reason)
	}
	bm.SetBodyMap("amount", func(am gopay.BodyMap) {
		am.Set("refund", data.Amount)
		am.Set("total", data.Amount)
		am.Set("currency", "CNY")
	})

	resp, err := s.client.V3Refund(ctx, bm)
	if err != nil {
		s.logger.Error("wechat refund failed", zap.Error(err))
		return nil, errs.ProviderUnavailable(WechatName, err)
	}
	if resp.Code != wechat.Success {
		return nil, errs.ProviderRejected(WechatName, resp.Error)
	}

	return &RefundResult{
		Success:  true,
		RefundID: resp.Response.RefundId,
		Amount:   int64(resp.Response.Amount.Refund),
	}, nil
}

func (s *WechatStrategy) GetTransactionStatus(ctx context.Context, transactionID string) (*PaymentResult, error) {
	resp, err := s.client.V3TransactionQueryOrder(ctx, wechat.OutTradeNo, transactionID)
	if err != nil {
		s.logger.Error("wechat query failed", zap.Error(err))
		return nil, errs.ProviderUnavailable(WechatName, err)
	}
	if resp.Code != wechat.Success {
		return nil, errs.ProviderRejected(WechatName, resp.Error)
	}

	var amount int64
	if resp.Response.Amount != nil {
		amount = int64(resp.Response.Amount.Total)
	}

	return &PaymentResult{
		Success:       true,
		TransactionID: transactionID,
		Status:        mapWechatTradeState(resp.Response.TradeState),
		Amount:        amount,
		Currency:      "CNY",
	}, nil
}

// VerifyWebhookSignature is deferred to ParseWebhookEvent because the v3
// scheme signs timestamp+nonce+body from dedicated headers.
func (s *WechatStrategy) VerifyWebhookSignature(_ []byte, _ string) error {
	return nil
}

func (s *WechatStrategy) ParseWebhookEvent(ctx context.Context, payload []byte, headers map[string]string) (*WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(payload))
	if err != nil {
		return nil, errs.Internal("create wechat notify request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Wechatpay-Timestamp", headers["Wechatpay-Timestamp"])
	req.Header.Set("Wechatpay-Nonce", headers["Wechatpay-Nonce"])
	req.Header.Set("Wechatpay-Signature", headers["Wechatpay-Signature"])
	req.Header.Set("Wechatpay-Serial", headers["Wechatpay-Serial"])

	notifyReq, err := wechat.V3ParseNotify(req)
	if err != nil {
		return nil, errs.InvalidSignature(WechatName, err)
	}

	publicKey, err := parseRSAPublicKey(s.config.WechatPublicKey)
	if err != nil {
		return nil, errs.Internal("parse wechat platform public key", err)
	}
	if err := notifyReq.VerifySignByPK(publicKey); err != nil {
		return nil, errs.InvalidSignature(WechatName, err)
	}

	resource, err := notifyReq.DecryptPayCipherText(s.config.APIv3Key)
	if err != nil {
		return nil, errs.InvalidSignature(WechatName, err)
	}

	event := &WebhookEvent{
		ID:            notifyReq.Id,
		Provider:      WechatName,
		RawType:       resource.TradeState,
		TransactionID: resource.OutTradeNo,
		Currency:      "CNY",
		Category:      EventUnknown,
	}
	if resource.Amount != nil {
		event.Amount = int64(resource.Amount.Total)
	}

	switch resource.TradeState {
	case "SUCCESS":
		event.Category = EventPaymentSucceeded
	case "PAYERROR", "CLOSED":
		event.Category = EventPaymentFailed
		event.FailureCode = resource.TradeState
		event.FailureMessage = resource.TradeStateDesc
	}

	return event, nil
}

func mapWechatTradeState(tradeState string) domain.IntentStatus {
	switch tradeState {
	case "NOTPAY":
		return domain.StatusRequiresAction
	case "USERPAYING":
		return domain.StatusProcessing
	case "SUCCESS":
		return domain.StatusSucceeded
	case "CLOSED", "PAYERROR", "REVOKED":
		return domain.StatusCanceled
	default:
		return domain.StatusProcessing
	}
}

// parseRSAPublicKey accepts either a PKIX public key or a certificate PEM.
func parseRSAPublicKey(pemKey string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		cert, certErr := x509.ParseCertificate(block.Bytes)
		if certErr != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		rsaKey, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("certificate does not contain an RSA public key")
		}
		return rsaKey, nil
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaKey, nil
}
