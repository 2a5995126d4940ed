package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"
)

// Config holds everything the bot needs before the core pipeline starts.
// Monetary fields are wei-denominated big integers; basis-point fields are
// plain integers (1 bps = 0.01%).
type Config struct {
	// Chain and network settings
	ChainID     uint64 `json:"chain_id"`
	RPCEndpoint string `json:"rpc_endpoint"`
	WSEndpoint  string `json:"ws_endpoint"`
	RelayURL    string `json:"relay_url"`

	// Settlement pair
	FundingToken common.Address `json:"funding_token"`
	TargetToken  common.Address `json:"target_token"`
	// FundingIsNative marks the funding token as the wrapped native asset,
	// in which case gas cost converts 1:1 into funding-token terms.
	FundingIsNative bool `json:"funding_is_native"`
	// NativeToFundingRate converts native-asset gas cost into funding-token
	// terms when the funding token is not the wrapped native asset.
	NativeToFundingRate string         `json:"native_to_funding_rate"`
	ArbContract         common.Address `json:"arb_contract"`

	// Trading thresholds
	PriceDiffBps   int64         `json:"price_diff_bps"`
	SlippageBps    int64         `json:"slippage_bps"`
	MinProfit      *big.Int      `json:"min_profit"`
	GasLimit       uint64        `json:"gas_limit"`
	GasPriceCap    *big.Int      `json:"gas_price_cap"`
	TriggerVenue   string        `json:"trigger_venue"`
	VenuesFile     string        `json:"venues_file"`
	AuditLogPath   string        `json:"audit_log_path"`
	NetworkTimeout time.Duration `json:"network_timeout"`

	// Trigger rate limiting
	TriggerRateLimit float64 `json:"trigger_rate_limit"`
	TriggerBurst     int     `json:"trigger_burst"`

	// Feature flags
	PrometheusEnabled  bool   `json:"prometheus_enabled"`
	PrometheusEndpoint string `json:"prometheus_endpoint"`

	// Populated from the venues file, not the JSON document.
	Venues []VenueConfig `json:"-"`

	// Internal components
	Logger *zap.Logger `json:"-"`
}

// VenueConfig identifies one constant-product exchange.
type VenueConfig struct {
	Name    string `yaml:"name"`
	Factory string `yaml:"factory"`
	Router  string `yaml:"router"`
}

// FactoryAddress returns the parsed factory address.
func (v *VenueConfig) FactoryAddress() common.Address {
	return common.HexToAddress(v.Factory)
}

// RouterAddress returns the parsed router address.
func (v *VenueConfig) RouterAddress() common.Address {
	return common.HexToAddress(v.Router)
}

// LoadConfig reads the JSON config file and the YAML venue registry it
// references. An empty path falls back to ./config.json.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	venues, err := LoadVenues(cfg.VenuesFile)
	if err != nil {
		return nil, err
	}
	cfg.Venues = venues

	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadVenues reads the YAML venue registry. Registry order is significant:
// it fixes the cyclic route order and the detector's tie-break.
func LoadVenues(path string) ([]VenueConfig, error) {
	if path == "" {
		path = "venues.yaml"
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read venues file: %w", err)
	}

	var doc struct {
		Venues []VenueConfig `yaml:"venues"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse venues file: %w", err)
	}

	return doc.Venues, nil
}

func defaultConfig() *Config {
	return &Config{
		PriceDiffBps:        50,
		SlippageBps:         50,
		GasLimit:            400000,
		MinProfit:           big.NewInt(0),
		GasPriceCap:         big.NewInt(200_000_000_000), // 200 gwei
		NetworkTimeout:      10 * time.Second,
		TriggerRateLimit:    2,
		TriggerBurst:        1,
		NativeToFundingRate: "1",
	}
}

// NativeRate parses the native-to-funding conversion rate. The funding token
// being the wrapped native asset forces the rate to 1.
func (c *Config) NativeRate() (decimal.Decimal, error) {
	if c.FundingIsNative {
		return decimal.NewFromInt(1), nil
	}
	rate, err := decimal.NewFromString(c.NativeToFundingRate)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid native_to_funding_rate: %w", err)
	}
	return rate, nil
}

// ValidateConfig checks the loaded configuration and reports every problem
// at once rather than failing on the first.
func (c *Config) ValidateConfig() error {
	var errors []string

	if c.ChainID == 0 {
		errors = append(errors, "chain_id must be specified")
	}
	if c.RPCEndpoint == "" {
		errors = append(errors, "rpc_endpoint must be specified")
	}
	if c.WSEndpoint == "" {
		errors = append(errors, "ws_endpoint must be specified")
	}
	if c.RelayURL == "" {
		errors = append(errors, "relay_url must be specified")
	}
	if c.FundingToken == (common.Address{}) {
		errors = append(errors, "funding_token must be specified")
	}
	if c.TargetToken == (common.Address{}) {
		errors = append(errors, "target_token must be specified")
	}
	if c.ArbContract == (common.Address{}) {
		errors = append(errors, "arb_contract must be specified")
	}
	if c.PriceDiffBps <= 0 {
		errors = append(errors, "price_diff_bps must be positive")
	}
	if c.SlippageBps < 0 {
		errors = append(errors, "slippage_bps must be non-negative")
	}
	if c.MinProfit == nil || c.MinProfit.Sign() < 0 {
		errors = append(errors, "min_profit must be non-negative")
	}
	if c.GasLimit == 0 {
		errors = append(errors, "gas_limit must be positive")
	}
	if c.GasPriceCap == nil || c.GasPriceCap.Sign() <= 0 {
		errors = append(errors, "gas_price_cap must be positive")
	}
	if !c.FundingIsNative {
		if rate, err := decimal.NewFromString(c.NativeToFundingRate); err != nil || rate.Sign() <= 0 {
			errors = append(errors, "native_to_funding_rate must be a positive decimal")
		}
	}
	if len(c.Venues) < 2 {
		errors = append(errors, "at least two venues must be configured")
	}
	seen := make(map[string]bool, len(c.Venues))
	for _, v := range c.Venues {
		if v.Name == "" {
			errors = append(errors, "venue name must be specified")
			continue
		}
		if seen[v.Name] {
			errors = append(errors, fmt.Sprintf("duplicate venue %q", v.Name))
		}
		seen[v.Name] = true
		if v.FactoryAddress() == (common.Address{}) {
			errors = append(errors, fmt.Sprintf("venue %q: factory must be specified", v.Name))
		}
		if v.RouterAddress() == (common.Address{}) {
			errors = append(errors, fmt.Sprintf("venue %q: router must be specified", v.Name))
		}
	}
	if c.TriggerVenue != "" && !seen[c.TriggerVenue] {
		errors = append(errors, fmt.Sprintf("trigger_venue %q is not a configured venue", c.TriggerVenue))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// ReferenceVenue returns the venue whose Swap events drive the cycle loop.
// Defaults to the first configured venue.
func (c *Config) ReferenceVenue() VenueConfig {
	if c.TriggerVenue != "" {
		for _, v := range c.Venues {
			if v.Name == c.TriggerVenue {
				return v
			}
		}
	}
	return c.Venues[0]
}
