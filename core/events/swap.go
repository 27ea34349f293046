package events

import (
	"math/big"
	"strconv"

	"solaire/core/types"
)

const (
	TypeTokenSwapped          = "swap.token_swapped"
	TypeSwapSupportedUpdated  = "swap.supported_updated"
	TypeSwapParametersUpdated = "swap.parameters_updated"
)

// TokenSwapped is emitted after a successful stablecoin exchange.
type TokenSwapped struct {
	Account   [20]byte
	TokenIn   string
	TokenOut  string
	AmountIn  *big.Int
	AmountOut *big.Int
	Fee       *big.Int
}

func (TokenSwapped) EventType() string { return TypeTokenSwapped }

func (e TokenSwapped) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenSwapped,
		Attributes: map[string]string{
			"account":   addressString(e.Account),
			"tokenIn":   e.TokenIn,
			"tokenOut":  e.TokenOut,
			"amountIn":  amountString(e.AmountIn),
			"amountOut": amountString(e.AmountOut),
			"fee":       amountString(e.Fee),
		},
	}
}

// SupportedTokenUpdated records a change to the swap engine's token set.
type SupportedTokenUpdated struct {
	Token     string
	Supported bool
}

func (SupportedTokenUpdated) EventType() string { return TypeSwapSupportedUpdated }

func (e SupportedTokenUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapSupportedUpdated,
		Attributes: map[string]string{
			"token":     e.Token,
			"supported": boolString(e.Supported),
		},
	}
}

// SwapParametersUpdated records a new fee or slippage bound.
type SwapParametersUpdated struct {
	FeeBps         uint64
	MaxSlippageBps uint64
}

func (SwapParametersUpdated) EventType() string { return TypeSwapParametersUpdated }

func (e SwapParametersUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapParametersUpdated,
		Attributes: map[string]string{
			"feeBps":         strconv.FormatUint(e.FeeBps, 10),
			"maxSlippageBps": strconv.FormatUint(e.MaxSlippageBps, 10),
		},
	}
}

func boolString(v bool) string {
	return strconv.FormatBool(v)
}
