// Package security fetches advisory token risk summaries. Results annotate
// tokens for display and never affect route eligibility.
package security

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Chrissou78/omniswap-sub002/internal/infrastructure/pricing"
)

const (
	GoPlusBaseURL   = "https://api.gopluslabs.io/api/v1"
	goPlusRateLimit = 30
)

// ErrNotAudited means the provider has no report for the token
var ErrNotAudited = errors.New("token not audited")

// RiskLevel buckets the risk score
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var highTax = decimal.RequireFromString("0.1")

// AuditSummary is the advisory result shown next to a token
type AuditSummary struct {
	ChainID    int64     `json:"chainId"`
	Address    string    `json:"address"`
	RiskLevel  RiskLevel `json:"riskLevel"`
	RiskScore  int       `json:"riskScore"`
	IsHoneypot bool      `json:"isHoneypot"`
	HasHighTax bool      `json:"hasHighTax"`
	Flags      []string  `json:"flags,omitempty"`
}

// Auditor returns the audit summary of a token
type Auditor interface {
	AuditSummary(ctx context.Context, chainID int64, address string) (*AuditSummary, error)
}

type goPlusResponse struct {
	Code    int                       `json:"code"`
	Message string                    `json:"message"`
	Result  map[string]goPlusSecurity `json:"result"`
}

// goPlusSecurity holds the flags we score; GoPlus encodes booleans as "0"/"1"
type goPlusSecurity struct {
	IsHoneypot         string `json:"is_honeypot"`
	BuyTax             string `json:"buy_tax"`
	SellTax            string `json:"sell_tax"`
	IsOpenSource       string `json:"is_open_source"`
	IsProxy            string `json:"is_proxy"`
	IsMintable         string `json:"is_mintable"`
	HiddenOwner        string `json:"hidden_owner"`
	OwnerChangeBalance string `json:"owner_change_balance"`
	CannotSellAll      string `json:"cannot_sell_all"`
	IsBlacklisted      string `json:"is_blacklisted"`
}

// GoPlusAuditor queries the GoPlus token security API
type GoPlusAuditor struct {
	http    *pricing.HTTPClient
	baseURL string
}

func NewGoPlusAuditor(baseURL string, timeout time.Duration) *GoPlusAuditor {
	if baseURL == "" {
		baseURL = GoPlusBaseURL
	}
	return &GoPlusAuditor{
		http:    pricing.NewHTTPClient(timeout, goPlusRateLimit),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (a *GoPlusAuditor) AuditSummary(ctx context.Context, chainID int64, address string) (*AuditSummary, error) {
	endpoint := fmt.Sprintf("%s/token_security/%d?contract_addresses=%s", a.baseURL, chainID, url.QueryEscape(address))

	var resp goPlusResponse
	if err := a.http.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("goplus audit: %w", err)
	}
	if resp.Code != 1 {
		return nil, fmt.Errorf("goplus audit: %s", resp.Message)
	}

	for addr, sec := range resp.Result {
		if strings.EqualFold(addr, address) {
			summary := score(sec)
			summary.ChainID = chainID
			summary.Address = address
			return summary, nil
		}
	}
	return nil, ErrNotAudited
}

// score turns GoPlus flags into a 0..100 risk score
func score(sec goPlusSecurity) *AuditSummary {
	s := &AuditSummary{}

	flag := func(v string, name string, weight int) {
		if v == "1" {
			s.RiskScore += weight
			s.Flags = append(s.Flags, name)
		}
	}

	if sec.IsHoneypot == "1" {
		s.IsHoneypot = true
		s.RiskScore = 100
		s.Flags = append(s.Flags, "honeypot")
	}
	if taxAbove(sec.BuyTax) || taxAbove(sec.SellTax) {
		s.HasHighTax = true
		s.RiskScore += 30
		s.Flags = append(s.Flags, "high_tax")
	}
	if sec.IsOpenSource == "0" {
		s.RiskScore += 20
		s.Flags = append(s.Flags, "closed_source")
	}
	flag(sec.CannotSellAll, "cannot_sell_all", 20)
	flag(sec.HiddenOwner, "hidden_owner", 15)
	flag(sec.OwnerChangeBalance, "owner_change_balance", 15)
	flag(sec.IsProxy, "proxy", 10)
	flag(sec.IsMintable, "mintable", 10)
	flag(sec.IsBlacklisted, "blacklist", 10)

	if s.RiskScore > 100 {
		s.RiskScore = 100
	}
	switch {
	case s.RiskScore >= 60:
		s.RiskLevel = RiskHigh
	case s.RiskScore >= 30:
		s.RiskLevel = RiskMedium
	default:
		s.RiskLevel = RiskLow
	}
	return s
}

func taxAbove(v string) bool {
	if v == "" {
		return false
	}
	tax, err := decimal.NewFromString(v)
	if err != nil {
		return false
	}
	return tax.GreaterThan(highTax)
}
