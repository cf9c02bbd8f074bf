package square

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/angelmondragon/fabshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
)

// SignatureHeader carries the base64 HMAC-SHA256 of notification URL + body.
const SignatureHeader = "X-Square-Hmacsha256-Signature"

var (
	errSignatureKeyRequired    = errors.New("square webhook signature key is required")
	errNotificationURLRequired = errors.New("square webhook notification url is required")
)

// WebhookVerifier authenticates Square webhook deliveries.
type WebhookVerifier struct {
	signatureKey    []byte
	notificationURL string
}

func NewWebhookVerifier(cfg config.SquareConfig) (*WebhookVerifier, error) {
	key := strings.TrimSpace(cfg.WebhookSecret)
	if key == "" {
		return nil, errSignatureKeyRequired
	}
	url := strings.TrimSpace(cfg.WebhookURL)
	if url == "" {
		return nil, errNotificationURLRequired
	}
	return &WebhookVerifier{signatureKey: []byte(key), notificationURL: url}, nil
}

// Sign returns the signature Square would send for body.
func (v *WebhookVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.signatureKey)
	mac.Write([]byte(v.notificationURL))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks header against body in constant time.
func (v *WebhookVerifier) Verify(body []byte, header string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return pkgerrors.New(pkgerrors.CodeSignatureVerify, "webhook signature missing")
	}
	if !hmac.Equal([]byte(v.Sign(body)), []byte(header)) {
		return pkgerrors.New(pkgerrors.CodeSignatureVerify, "webhook signature mismatch")
	}
	return nil
}
