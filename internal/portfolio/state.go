package portfolio

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nearswap/agent/internal/dex"
	"github.com/nearswap/agent/internal/rate"
)

// yoctoPerNear is the number of yoctoNEAR in one whole NEAR (NEAR has 24
// decimals, spec.md GLOSSARY).
var yoctoPerNear = decimal.New(1, 24)

// State is the in-memory portfolio ledger: cash plus per-token holdings,
// each carrying an average cost basis in yoctoNEAR (spec.md §3/§4.6).
// Average-cost-basis accounting is used instead of FIFO lot tracking:
// it needs no lot history, only a
// running (balance, cost_basis) pair per token, which matches this
// agent's single-process, crash-recoverable-from-snapshot requirement.
type State struct {
	CashYocto     decimal.Decimal
	Holdings      map[dex.TokenAccount]*Holding
	RealizedPnL   decimal.Decimal // cumulative, yoctoNEAR
}

// NewState creates an empty portfolio state with the given starting cash.
func NewState(cashYocto decimal.Decimal) *State {
	return &State{
		CashYocto:   cashYocto,
		Holdings:    make(map[dex.TokenAccount]*Holding),
		RealizedPnL: decimal.Zero,
	}
}

func (s *State) holding(token dex.TokenAccount) *Holding {
	h, ok := s.Holdings[token]
	if !ok {
		h = &Holding{Token: token, Balance: decimal.Zero, CostBasisYocto: decimal.Zero}
		s.Holdings[token] = h
	}
	return h
}

// AddPosition increases token's balance by amount (smallest units),
// attributing costYocto to it.
func (s *State) AddPosition(token dex.TokenAccount, amount, costYocto decimal.Decimal) {
	h := s.holding(token)
	h.Balance = h.Balance.Add(amount)
	h.CostBasisYocto = h.CostBasisYocto.Add(costYocto)
}

// Sell reduces token's balance by sellAmount (smallest units) in exchange
// for proceedsYocto, realizing a proportional share of the position's
// cost basis. Returns the realized P&L in yoctoNEAR (spec.md §4.6):
//
//	cost_of_sold = round(cost_basis * S / T)   if S < T
//	             = cost_basis                  if S == T
//	pnl = proceeds_yocto - cost_of_sold
//
// S > T is rejected with an error.
func (s *State) Sell(token dex.TokenAccount, sellAmount, proceedsYocto decimal.Decimal) (decimal.Decimal, error) {
	h, ok := s.Holdings[token]
	if !ok || h.Balance.IsZero() {
		return decimal.Zero, fmt.Errorf("no holding of %s to sell", token)
	}
	if sellAmount.GreaterThan(h.Balance) {
		return decimal.Zero, fmt.Errorf("sell amount %s exceeds held balance %s for %s", sellAmount, h.Balance, token)
	}

	var costOfSold decimal.Decimal
	if sellAmount.LessThan(h.Balance) {
		costOfSold = h.CostBasisYocto.Mul(sellAmount).Div(h.Balance).Round(0)
	} else {
		costOfSold = h.CostBasisYocto
	}

	pnl := proceedsYocto.Sub(costOfSold)

	h.Balance = h.Balance.Sub(sellAmount)
	h.CostBasisYocto = h.CostBasisYocto.Sub(costOfSold)
	s.RealizedPnL = s.RealizedPnL.Add(pnl)

	return pnl, nil
}

// LiquidateAll sells every non-zero holding at the most recently recorded
// rate at or before asOf, converting everything to cash (spec.md §4.6
// liquidate_all). Holdings with no recorded rate as of asOf are skipped
// and left in place; callers should treat a non-empty returned skip list
// as a signal to retry once more rates have been recorded.
func (s *State) LiquidateAll(rates *rate.Repository, quoteToken dex.TokenAccount, asOf time.Time) (skipped []dex.TokenAccount, err error) {
	for token, h := range s.Holdings {
		if h.Balance.IsZero() {
			continue
		}

		r, ok, err := rates.LatestBefore(token, quoteToken, asOf)
		if err != nil {
			return skipped, fmt.Errorf("liquidate_all: look up rate for %s: %w", token, err)
		}
		if !ok {
			skipped = append(skipped, token)
			continue
		}

		// RateCalcNear is already normalized to whole-NEAR-per-smallest-unit
		// of the base token (C-RATE divides by the base token's decimals
		// before persisting), so converting a smallest-unit balance to
		// yoctoNEAR needs only one multiplication by yoctoPerNear.
		proceedsYocto := h.Balance.Mul(r.RateCalcNear).Mul(yoctoPerNear)

		if _, err := s.Sell(token, h.Balance, proceedsYocto); err != nil {
			return skipped, fmt.Errorf("liquidate_all: sell %s: %w", token, err)
		}

		s.CashYocto = s.CashYocto.Add(proceedsYocto)
	}
	return skipped, nil
}

// ValueNear computes the portfolio's total value in whole NEAR: cash plus
// each holding valued at its most recently recorded rate (spec.md §4.6
// record_snapshot). Holdings with no available rate are valued at zero
// and reported in the returned skip list.
func (s *State) ValueNear(rates *rate.Repository, quoteToken dex.TokenAccount, asOf time.Time) (decimal.Decimal, []dex.TokenAccount, error) {
	total := s.CashYocto.Div(yoctoPerNear)
	var skipped []dex.TokenAccount

	for token, h := range s.Holdings {
		if h.Balance.IsZero() {
			continue
		}
		r, ok, err := rates.LatestBefore(token, quoteToken, asOf)
		if err != nil {
			return decimal.Zero, skipped, fmt.Errorf("value_near: look up rate for %s: %w", token, err)
		}
		if !ok {
			skipped = append(skipped, token)
			continue
		}
		valueNear := h.Balance.Mul(r.RateCalcNear)
		total = total.Add(valueNear)
	}

	return total, skipped, nil
}

// Snapshot captures the current state as a persistable Snapshot.
func (s *State) Snapshot(day string, rates *rate.Repository, quoteToken dex.TokenAccount, asOf time.Time) (Snapshot, error) {
	totalNear, _, err := s.ValueNear(rates, quoteToken, asOf)
	if err != nil {
		return Snapshot{}, err
	}

	holdings := make(map[dex.TokenAccount]decimal.Decimal, len(s.Holdings))
	for token, h := range s.Holdings {
		holdings[token] = h.Balance
	}

	return Snapshot{
		Day:            day,
		CashYocto:      s.CashYocto,
		TotalValueNear: totalNear,
		Holdings:       holdings,
	}, nil
}
