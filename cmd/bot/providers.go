package bot

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/michaelpento.lv/arbkeeper/dex"
	"github.com/michaelpento.lv/arbkeeper/dex/solidly"
	"github.com/michaelpento.lv/arbkeeper/dex/uniswap"
	"github.com/michaelpento.lv/arbkeeper/types"
)

// BuildProviders creates one quote provider per configured venue
func BuildProviders(venues []types.VenueConfig, caller bind.ContractCaller) ([]dex.QuoteProvider, error) {
	providers := make([]dex.QuoteProvider, 0, len(venues))
	for _, v := range venues {
		var (
			p   dex.QuoteProvider
			err error
		)
		switch v.Kind {
		case types.VenueUniswapV2:
			p, err = uniswap.NewV2Router(v, caller)
		case types.VenueUniswapV3:
			p, err = uniswap.NewV3Quoter(v, caller)
		case types.VenueSolidly:
			p = solidly.NewRouter(v, caller)
		default:
			err = fmt.Errorf("unsupported venue kind %q", v.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", v.Name, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}
