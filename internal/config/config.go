package config

import "os"

// Settings are the daemon's own environment-derived options, distinct from
// the persisted terminal Config record.
type Settings struct {
	Port         string
	ConfigPath   string
	GatewayMode  string
	OTLPEndpoint string
	CurrencyCode string
}

func Load() *Settings {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8087"
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	gatewayMode := os.Getenv("GATEWAY_MODE")
	if gatewayMode == "" {
		gatewayMode = "simulated"
	}

	currency := os.Getenv("CURRENCY_CODE")
	if currency == "" {
		currency = "USD"
	}

	return &Settings{
		Port:         port,
		ConfigPath:   configPath,
		GatewayMode:  gatewayMode,
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
		CurrencyCode: currency,
	}
}

// Config is the persisted terminal identity and connection record. The
// backend issues it at registration time and may replace it at runtime via an
// updateConfig event.
type Config struct {
	TerminalName string `json:"terminalName"`
	Endpoint     string `json:"endpoint"`
	Token        string `json:"token"`
	WebViewURL   string `json:"webViewUrl"`
	ThemeColor   string `json:"themeColor"`

	MQTTHost     string `json:"mqttHost"`
	MQTTPort     int    `json:"mqttPort"`
	MQTTUsername string `json:"mqttUsername"`
	MQTTPassword string `json:"mqttPassword"`
	MQTTPrefix   string `json:"mqttPrefix"`

	SquareApplicationID string `json:"squareApplicationId"`
	SquareLocationID    string `json:"squareLocationId"`
}

// IsComplete reports whether the record carries enough identity to connect.
func (c Config) IsComplete() bool {
	return c.TerminalName != "" && c.Endpoint != "" && c.Token != "" &&
		c.MQTTHost != "" && c.MQTTPrefix != ""
}
