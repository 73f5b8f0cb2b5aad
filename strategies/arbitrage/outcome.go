package arbitrage

import "fmt"

// OutcomeKind classifies the result of a pipeline stage
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	// OutcomeSkip is an expected rejection, e.g. spread too small or gas too expensive
	OutcomeSkip
	// OutcomeError is an unexpected failure, e.g. an RPC error or a reverted execution
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeSkip:
		return "skip"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Rejection reasons, also used as metric labels
const (
	ReasonInsufficientQuotes = "insufficient_quotes"
	ReasonSpreadTooSmall     = "spread_below_threshold"
	ReasonNoLiquidity        = "no_liquidity"
	ReasonProfitTooSmall     = "profit_below_minimum"
	ReasonInvalidPath        = "invalid_path"
	ReasonPaused             = "paused"
	ReasonExpired            = "expired"
	ReasonGasPrice           = "gas_price_above_ceiling"
	ReasonUnprofitable       = "simulation_unprofitable"
	ReasonInFlight           = "already_in_flight"
	ReasonShutdown           = "shutting_down"
	ReasonRPC                = "rpc_error"
	ReasonReverted           = "reverted"
	ReasonTimeout            = "timeout"
)

// Outcome is the typed result every stage returns instead of panicking or logging ad hoc
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Detail string
	Err    error
}

func OK() Outcome {
	return Outcome{Kind: OutcomeOK}
}

func Skip(reason, detail string) Outcome {
	return Outcome{Kind: OutcomeSkip, Reason: reason, Detail: detail}
}

func Fail(reason string, err error) Outcome {
	return Outcome{Kind: OutcomeError, Reason: reason, Err: err}
}

func (o Outcome) IsOK() bool {
	return o.Kind == OutcomeOK
}

func (o Outcome) String() string {
	switch {
	case o.Kind == OutcomeOK:
		return "ok"
	case o.Err != nil:
		return fmt.Sprintf("%s(%s): %v", o.Kind, o.Reason, o.Err)
	case o.Detail != "":
		return fmt.Sprintf("%s(%s): %s", o.Kind, o.Reason, o.Detail)
	default:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
	}
}
