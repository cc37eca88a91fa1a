package config

import (
	"os"
	"time"

	"github.com/spf13/cast"
)

// Config is populated from PAYCORE_* environment variables. A gateway is
// registered only when its credential block is present; partially filled
// blocks fail startup for that gateway.
type Config struct {
	Listen      string
	DatabaseDSN string

	// PublicBaseURL is the externally reachable origin gateways call back
	// to; FrontendBaseURL is where payers are redirected afterwards.
	PublicBaseURL   string
	FrontendBaseURL string

	DefaultGateway string
	GatewayTimeout time.Duration

	ZarinPal struct {
		MerchantID string
		Sandbox    bool
	}

	IDPay struct {
		APIKey  string
		Sandbox bool
	}

	PayPal struct {
		ClientID     string
		ClientSecret string
		Live         bool
		Currency     string
	}
}

func Load() *Config {
	c := &Config{
		Listen:          envString("PAYCORE_LISTEN", ":8080"),
		DatabaseDSN:     envString("PAYCORE_DATABASE_DSN", ""),
		PublicBaseURL:   envString("PAYCORE_PUBLIC_BASE_URL", "http://localhost:8080"),
		FrontendBaseURL: envString("PAYCORE_FRONTEND_BASE_URL", ""),
		DefaultGateway:  envString("PAYCORE_DEFAULT_GATEWAY", "zarinpal"),
		GatewayTimeout:  envDuration("PAYCORE_GATEWAY_TIMEOUT", 10*time.Second),
	}

	c.ZarinPal.MerchantID = envString("PAYCORE_ZARINPAL_MERCHANT_ID", "")
	c.ZarinPal.Sandbox = envBool("PAYCORE_ZARINPAL_SANDBOX", false)

	c.IDPay.APIKey = envString("PAYCORE_IDPAY_API_KEY", "")
	c.IDPay.Sandbox = envBool("PAYCORE_IDPAY_SANDBOX", false)

	c.PayPal.ClientID = envString("PAYCORE_PAYPAL_CLIENT_ID", "")
	c.PayPal.ClientSecret = envString("PAYCORE_PAYPAL_CLIENT_SECRET", "")
	c.PayPal.Live = envBool("PAYCORE_PAYPAL_LIVE", false)
	c.PayPal.Currency = envString("PAYCORE_PAYPAL_CURRENCY", "USD")

	return c
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		return cast.ToBool(v)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d := cast.ToDuration(v); d > 0 {
			return d
		}
	}
	return fallback
}
