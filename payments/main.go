package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"psychebot/httpmiddleware"
	"psychebot/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	requestURL  = "https://payment.zarinpal.com/pg/v4/payment/request.json"
	verifyURL   = "https://payment.zarinpal.com/pg/v4/payment/verify.json"
	startPayURL = "https://payment.zarinpal.com/pg/StartPay/%s"
)

type ZarinConnectProps struct {
	Logger *logger.LogMiddleware
}

// Zarin talks to the ZarinPal pg/v4 gateway. Amounts are taken in toman and
// sent to the gateway in rial.
type Zarin struct {
	logger      *logger.LogMiddleware
	merchantID  string
	callbackURL string
}

func Connect(ctx context.Context, args ZarinConnectProps) *Zarin {
	tracer := otel.Tracer("payments/Connect")
	_, span := tracer.Start(ctx, "Connect")
	defer span.End()

	return &Zarin{
		logger:      args.Logger,
		merchantID:  os.Getenv("ZARINPAL_MERCHANT_ID"),
		callbackURL: os.Getenv("ZARINPAL_CALLBACK_URL"),
	}
}

type PaymentLink struct {
	Authority string
	URL       string
}

type requestPayload struct {
	MerchantID  string `json:"merchant_id"`
	Amount      int64  `json:"amount"`
	CallbackURL string `json:"callback_url"`
	Description string `json:"description"`
}

type requestResponse struct {
	Data struct {
		Code      int    `json:"code"`
		Authority string `json:"authority"`
	} `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// CreatePaymentLink registers a payment for amountToman and returns the
// gateway URL the user should open.
func (z *Zarin) CreatePaymentLink(ctx context.Context, amountToman int64, description string) (*PaymentLink, error) {
	tracer := otel.Tracer("payments/CreatePaymentLink")
	ctx, span := tracer.Start(ctx, "CreatePaymentLink")
	defer span.End()
	span.SetAttributes(attribute.Int64("amount_toman", amountToman))

	if z.merchantID == "" {
		return nil, fmt.Errorf("payments: ZARINPAL_MERCHANT_ID not configured")
	}
	if amountToman <= 0 {
		return nil, fmt.Errorf("payments: amount must be positive, got %d", amountToman)
	}

	body, err := json.Marshal(requestPayload{
		MerchantID:  z.merchantID,
		Amount:      amountToman * 10,
		CallbackURL: z.callbackURL,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("payments: encode request: %w", err)
	}

	respBody, err := httpmiddleware.HttpRequest(httpmiddleware.HttpRequestStruct{
		Method:  "POST",
		Url:     requestURL,
		Body:    bytes.NewReader(body),
		Headers: map[string]string{"Content-Type": "application/json"},
	})
	if err != nil {
		span.RecordError(err)
		z.logger.Logger(ctx).Error("[Payments] Payment request failed", zap.Error(err))
		return nil, fmt.Errorf("payments: request: %w", err)
	}

	var parsed requestResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("payments: decode response: %w", err)
	}
	if parsed.Data.Code != 100 || parsed.Data.Authority == "" {
		z.logger.Logger(ctx).Error("[Payments] Gateway rejected payment request",
			zap.Int("code", parsed.Data.Code), zap.ByteString("errors", parsed.Errors))
		return nil, fmt.Errorf("payments: gateway rejected request with code %d", parsed.Data.Code)
	}

	z.logger.Logger(ctx).Info("[Payments] Payment link created",
		zap.String("authority", parsed.Data.Authority), zap.Int64("amount_toman", amountToman))
	return &PaymentLink{
		Authority: parsed.Data.Authority,
		URL:       fmt.Sprintf(startPayURL, parsed.Data.Authority),
	}, nil
}

type verifyPayload struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type verifyResponse struct {
	Data struct {
		Code  int    `json:"code"`
		RefID int64  `json:"ref_id"`
		Card  string `json:"card_pan"`
	} `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// VerifyPayment confirms a completed payment with the gateway. Code 100 is a
// fresh success, 101 means the payment was already verified; both count as
// paid.
func (z *Zarin) VerifyPayment(ctx context.Context, authority string, amountToman int64) (int64, error) {
	tracer := otel.Tracer("payments/VerifyPayment")
	ctx, span := tracer.Start(ctx, "VerifyPayment")
	defer span.End()
	span.SetAttributes(attribute.String("authority", authority))

	body, err := json.Marshal(verifyPayload{
		MerchantID: z.merchantID,
		Amount:     amountToman * 10,
		Authority:  authority,
	})
	if err != nil {
		return 0, fmt.Errorf("payments: encode verify: %w", err)
	}

	respBody, err := httpmiddleware.HttpRequest(httpmiddleware.HttpRequestStruct{
		Method:  "POST",
		Url:     verifyURL,
		Body:    bytes.NewReader(body),
		Headers: map[string]string{"Content-Type": "application/json"},
	})
	if err != nil {
		span.RecordError(err)
		z.logger.Logger(ctx).Error("[Payments] Verify request failed", zap.Error(err))
		return 0, fmt.Errorf("payments: verify: %w", err)
	}

	var parsed verifyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("payments: decode verify response: %w", err)
	}
	if parsed.Data.Code != 100 && parsed.Data.Code != 101 {
		z.logger.Logger(ctx).Warn("[Payments] Payment not verified",
			zap.Int("code", parsed.Data.Code), zap.String("authority", authority))
		return 0, fmt.Errorf("payments: verification failed with code %d", parsed.Data.Code)
	}

	z.logger.Logger(ctx).Info("[Payments] Payment verified",
		zap.Int64("ref_id", parsed.Data.RefID), zap.String("authority", authority))
	return parsed.Data.RefID, nil
}
