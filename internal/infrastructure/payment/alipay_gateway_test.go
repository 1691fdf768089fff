package payment

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func testAlipayConfig(t *testing.T, gatewayURL string) *AlipayConfig {
	key := generateTestKey(t)
	return &AlipayConfig{
		AppID:           "2021000000000001",
		PrivateKey:      key,
		AlipayPublicKey: &key.PublicKey,
		NotifyURL:       "https://groupbuy.example.com/notify",
		ReturnURL:       "https://groupbuy.example.com/return",
		IsSandbox:       true,
		GatewayURL:      gatewayURL,
	}
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestAlipayConfig_Validate(t *testing.T) {
	key := generateTestKey(t)
	tests := []struct {
		name    string
		mutate  func(c *AlipayConfig)
		wantErr error
	}{
		{"valid", func(*AlipayConfig) {}, nil},
		{"missing app id", func(c *AlipayConfig) { c.AppID = "" }, ErrAlipayMissingAppID},
		{"missing private key", func(c *AlipayConfig) { c.PrivateKey = nil }, ErrAlipayMissingPrivateKey},
		{"missing public key", func(c *AlipayConfig) { c.AlipayPublicKey = nil }, ErrAlipayMissingPublicKey},
		{"missing notify url", func(c *AlipayConfig) { c.NotifyURL = "" }, ErrAlipayMissingNotifyURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &AlipayConfig{AppID: "app", PrivateKey: key, AlipayPublicKey: &key.PublicKey, NotifyURL: "https://n"}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestAlipayConfigFromSettings(t *testing.T) {
	key := generateTestKey(t)
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	privPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	pubPath := filepath.Join(t.TempDir(), "alipay_public.pem")
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o600))

	cfg, err := AlipayConfigFromSettings(config.AlipaySettings{
		AppID:         "2021000000000001",
		PrivateKeyPEM: privPEM,
		PublicKeyFile: pubPath,
		Sandbox:       true,
		NotifyURL:     "https://groupbuy.example.com/notify",
	})
	require.NoError(t, err)
	assert.True(t, key.Equal(cfg.PrivateKey))
	assert.True(t, key.PublicKey.Equal(cfg.AlipayPublicKey))
	assert.Equal(t, alipaySandboxGatewayURL, cfg.endpoint())

	pkcs1 := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	parsed, err := ParsePrivateKey(pkcs1)
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))

	_, err = AlipayConfigFromSettings(config.AlipaySettings{AppID: "x", PrivateKeyPEM: "garbage"})
	assert.ErrorIs(t, err, ErrAlipayInvalidPrivateKey)
	_, err = AlipayConfigFromSettings(config.AlipaySettings{AppID: "x", PrivateKeyFile: "/does/not/exist"})
	assert.Error(t, err)
}

func TestAlipayGateway_ValidateMethod(t *testing.T) {
	gw, err := NewAlipayGateway(testAlipayConfig(t, ""))
	require.NoError(t, err)

	assert.NoError(t, gw.ValidateMethod(context.Background(), uuid.New(), MethodAlipayPage))
	assert.NoError(t, gw.ValidateMethod(context.Background(), uuid.New(), MethodAlipayWap))
	assert.ErrorIs(t, gw.ValidateMethod(context.Background(), uuid.New(), "card_123"), ErrUnsupportedMethod)
}

func TestAlipayGateway_CreatePaymentIntent(t *testing.T) {
	cfg := testAlipayConfig(t, "")
	gw, err := NewAlipayGateway(cfg)
	require.NoError(t, err)
	gw.now = fixedClock

	intent, err := gw.CreatePaymentIntent(context.Background(), grouporder.PaymentIntentRequest{
		OrderID:     uuid.New(),
		OrderNumber: "GO20260301-0001",
		MethodRef:   MethodAlipayPage,
		Amount:      decimal.NewFromInt(185000),
		Description: "Group order GO20260301-0001",
	})
	require.NoError(t, err)
	assert.Equal(t, "GO20260301-0001", intent.ID)
	assert.Equal(t, grouporder.PaymentIntentRequiresAction, intent.Status)

	u, err := url.Parse(intent.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "openapi-sandbox.dl.alipaydev.com", u.Host)

	q := u.Query()
	assert.Equal(t, alipayMethodPagePay, q.Get("method"))
	assert.Equal(t, cfg.NotifyURL, q.Get("notify_url"))
	assert.Equal(t, cfg.ReturnURL, q.Get("return_url"))

	var biz alipayBizContent
	require.NoError(t, json.Unmarshal([]byte(q.Get("biz_content")), &biz))
	assert.Equal(t, "185000.00", biz.TotalAmount)
	assert.Equal(t, alipayProductCodePage, biz.ProductCode)
	assert.Equal(t, "2026-03-01 12:30:00", biz.TimeExpire)
	assert.Empty(t, biz.QuitURL)

	params := map[string]string{}
	for k := range q {
		if k != "sign" {
			params[k] = q.Get(k)
		}
	}
	sig, err := base64.StdEncoding.DecodeString(q.Get("sign"))
	require.NoError(t, err)
	hash := sha256.Sum256([]byte(signString(params)))
	assert.NoError(t, rsa.VerifyPKCS1v15(&cfg.PrivateKey.PublicKey, crypto.SHA256, hash[:], sig))
}

func TestAlipayGateway_CreatePaymentIntent_Wap(t *testing.T) {
	gw, err := NewAlipayGateway(testAlipayConfig(t, ""))
	require.NoError(t, err)

	intent, err := gw.CreatePaymentIntent(context.Background(), grouporder.PaymentIntentRequest{
		OrderNumber: "GO-2",
		MethodRef:   MethodAlipayWap,
		Amount:      decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	u, err := url.Parse(intent.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, alipayMethodWapPay, u.Query().Get("method"))
	assert.Contains(t, u.Query().Get("biz_content"), alipayProductCodeWap)
	assert.Contains(t, u.Query().Get("biz_content"), "quit_url")
}

func TestSignString(t *testing.T) {
	got := signString(map[string]string{
		"b":    "2",
		"a":    "1",
		"sign": "x",
		"c":    "",
	})
	assert.Equal(t, "a=1&b=2", got)
}

func closeServer(t *testing.T, code, subCode string, status int) (*httptest.Server, *url.Values) {
	var received url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		received = r.PostForm
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"alipay_trade_close_response": map[string]string{
				"code":     code,
				"msg":      "msg",
				"sub_code": subCode,
				"sub_msg":  "sub msg",
			},
			"sign": "ignored",
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestAlipayGateway_CancelPaymentIntent(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		subCode string
		status  int
		wantErr error
	}{
		{"closed", alipayCodeSuccess, "", http.StatusOK, nil},
		{"trade never opened", "40004", alipaySubCodeNotExist, http.StatusOK, nil},
		{"business failure", "40004", "ACQ.TRADE_STATUS_ERROR", http.StatusOK, ErrGatewayRequestFailed},
		{"http failure", "", "", http.StatusBadGateway, ErrGatewayRequestFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, received := closeServer(t, tt.code, tt.subCode, tt.status)
			gw, err := NewAlipayGateway(testAlipayConfig(t, srv.URL))
			require.NoError(t, err)

			err = gw.CancelPaymentIntent(context.Background(), "GO-7")
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, alipayMethodClose, received.Get("method"))
			assert.Contains(t, received.Get("biz_content"), `"out_trade_no":"GO-7"`)
			assert.NotEmpty(t, received.Get("sign"))
		})
	}
}

func TestAlipayGateway_CancelPaymentIntent_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	gw, err := NewAlipayGateway(testAlipayConfig(t, srv.URL))
	require.NoError(t, err)
	assert.ErrorIs(t, gw.CancelPaymentIntent(context.Background(), "GO-8"), ErrGatewayUnavailable)
}
