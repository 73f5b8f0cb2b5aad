package flashloan

import (
	"fmt"
	"math/big"
	"strings"

	mathutil "github.com/michaelpento.lv/arbkeeper/utils/math"
)

// ProviderType represents different flash loan lenders
type ProviderType string

const (
	ProviderBalancer ProviderType = "balancer"
	ProviderAave     ProviderType = "aave"
)

// Default premiums in basis points (1 = 0.01%)
const (
	BalancerPremiumBps uint32 = 0
	AavePremiumBps     uint32 = 5
)

// Provider prices the lender's premium for a loan
type Provider interface {
	Premium(amount *big.Int) *big.Int
	String() string
}

type bpsProvider struct {
	kind ProviderType
	bps  uint32
}

// NewProvider returns the lender named kind. A non-nil premiumBps overrides the lender default.
func NewProvider(kind string, premiumBps *uint32) (Provider, error) {
	p := &bpsProvider{kind: ProviderType(strings.ToLower(kind))}

	switch p.kind {
	case ProviderBalancer:
		p.bps = BalancerPremiumBps
	case ProviderAave:
		p.bps = AavePremiumBps
	default:
		return nil, fmt.Errorf("unknown flash loan provider %q", kind)
	}
	if premiumBps != nil {
		p.bps = *premiumBps
	}

	return p, nil
}

// Premium returns amount * bps / 10000
func (p *bpsProvider) Premium(amount *big.Int) *big.Int {
	return mathutil.Bps(amount, p.bps)
}

func (p *bpsProvider) String() string {
	return fmt.Sprintf("%s (%d bps)", p.kind, p.bps)
}
