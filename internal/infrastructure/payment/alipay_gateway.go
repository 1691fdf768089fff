package payment

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
)

const (
	alipayGatewayURL        = "https://openapi.alipay.com/gateway.do"
	alipaySandboxGatewayURL = "https://openapi-sandbox.dl.alipaydev.com/gateway.do"
	alipayFormat            = "JSON"
	alipayCharset           = "utf-8"
	alipayVersion           = "1.0"
	alipaySignType          = "RSA2"
	alipayTimeLayout        = "2006-01-02 15:04:05"

	alipayMethodPagePay = "alipay.trade.page.pay"
	alipayMethodWapPay  = "alipay.trade.wap.pay"
	alipayMethodClose   = "alipay.trade.close"

	alipayProductCodePage = "FAST_INSTANT_TRADE_PAY"
	alipayProductCodeWap  = "QUICK_WAP_WAY"

	alipayCodeSuccess       = "10000"
	alipaySubCodeNotExist   = "ACQ.TRADE_NOT_EXIST"
	alipayPaymentTimeWindow = 30 * time.Minute
)

// Payment method references accepted by the Alipay gateway
const (
	MethodAlipayPage = "alipay_page"
	MethodAlipayWap  = "alipay_wap"
)

type alipayResponse struct {
	Code    string `json:"code"`
	Msg     string `json:"msg"`
	SubCode string `json:"sub_code,omitempty"`
	SubMsg  string `json:"sub_msg,omitempty"`
}

type alipayTradeCloseResponse struct {
	Response alipayResponse `json:"alipay_trade_close_response"`
	Sign     string         `json:"sign"`
}

type alipayBizContent struct {
	OutTradeNo  string `json:"out_trade_no"`
	ProductCode string `json:"product_code,omitempty"`
	TotalAmount string `json:"total_amount,omitempty"`
	Subject     string `json:"subject,omitempty"`
	TimeExpire  string `json:"time_expire,omitempty"`
	QuitURL     string `json:"quit_url,omitempty"`
}

// AlipayGateway charges orders through Alipay page or wap pay.
// The payer finishes on Alipay's page, so every intent requires action and
// its id is our order number.
type AlipayGateway struct {
	config     *AlipayConfig
	httpClient *http.Client
	now        func() time.Time
}

// NewAlipayGateway creates a new Alipay gateway
func NewAlipayGateway(config *AlipayConfig) (*AlipayGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &AlipayGateway{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}, nil
}

// ValidateMethod accepts the page and wap channels
func (a *AlipayGateway) ValidateMethod(_ context.Context, _ uuid.UUID, methodRef string) error {
	switch methodRef {
	case MethodAlipayPage, MethodAlipayWap:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedMethod, methodRef)
}

// CreatePaymentIntent builds the signed redirect to Alipay's cashier
func (a *AlipayGateway) CreatePaymentIntent(_ context.Context, req grouporder.PaymentIntentRequest) (*grouporder.PaymentIntent, error) {
	method, productCode := alipayMethodPagePay, alipayProductCodePage
	if req.MethodRef == MethodAlipayWap {
		method, productCode = alipayMethodWapPay, alipayProductCodeWap
	}

	biz := alipayBizContent{
		OutTradeNo:  req.OrderNumber,
		ProductCode: productCode,
		TotalAmount: req.Amount.StringFixed(2),
		Subject:     req.Description,
		TimeExpire:  a.now().Add(alipayPaymentTimeWindow).Format(alipayTimeLayout),
	}
	if method == alipayMethodWapPay {
		biz.QuitURL = a.config.ReturnURL
	}

	params, err := a.commonParams(method, biz)
	if err != nil {
		return nil, err
	}
	params["notify_url"] = a.config.NotifyURL
	if a.config.ReturnURL != "" {
		params["return_url"] = a.config.ReturnURL
	}
	sign, err := a.sign(params)
	if err != nil {
		return nil, fmt.Errorf("alipay: failed to sign request: %w", err)
	}
	params["sign"] = sign

	return &grouporder.PaymentIntent{
		ID:          req.OrderNumber,
		Status:      grouporder.PaymentIntentRequiresAction,
		RedirectURL: a.config.endpoint() + "?" + encode(params),
	}, nil
}

// CancelPaymentIntent closes the trade. A trade the payer never opened does
// not exist on Alipay's side, which counts as closed.
func (a *AlipayGateway) CancelPaymentIntent(ctx context.Context, intentID string) error {
	params, err := a.commonParams(alipayMethodClose, alipayBizContent{OutTradeNo: intentID})
	if err != nil {
		return err
	}
	sign, err := a.sign(params)
	if err != nil {
		return fmt.Errorf("alipay: failed to sign request: %w", err)
	}
	params["sign"] = sign

	body, err := a.doRequest(ctx, params)
	if err != nil {
		return err
	}
	var resp alipayTradeCloseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("alipay: failed to parse response: %w", err)
	}
	if resp.Response.Code == alipayCodeSuccess || resp.Response.SubCode == alipaySubCodeNotExist {
		return nil
	}
	return fmt.Errorf("%w: %s - %s", ErrGatewayRequestFailed, resp.Response.SubCode, resp.Response.SubMsg)
}

func (a *AlipayGateway) commonParams(method string, biz alipayBizContent) (map[string]string, error) {
	content, err := json.Marshal(biz)
	if err != nil {
		return nil, fmt.Errorf("alipay: failed to marshal biz_content: %w", err)
	}
	return map[string]string{
		"app_id":      a.config.AppID,
		"method":      method,
		"format":      alipayFormat,
		"charset":     alipayCharset,
		"sign_type":   alipaySignType,
		"timestamp":   a.now().Format(alipayTimeLayout),
		"version":     alipayVersion,
		"biz_content": string(content),
	}, nil
}

func (a *AlipayGateway) sign(params map[string]string) (string, error) {
	hash := sha256.Sum256([]byte(signString(params)))
	sig, err := rsa.SignPKCS1v15(rand.Reader, a.config.PrivateKey, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// signString joins non-empty params sorted by key, excluding sign
func signString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		if value != "" && key != "sign" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+params[key])
	}
	return strings.Join(parts, "&")
}

func encode(params map[string]string) string {
	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	return values.Encode()
}

func (a *AlipayGateway) doRequest(ctx context.Context, params map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.endpoint(), strings.NewReader(encode(params)))
	if err != nil {
		return nil, fmt.Errorf("alipay: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("alipay: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrGatewayRequestFailed, resp.StatusCode)
	}
	return body, nil
}

var _ grouporder.PaymentGateway = (*AlipayGateway)(nil)
