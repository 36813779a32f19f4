package policy

import "github.com/Chrissou78/omniswap-sub002/internal/domain/entities"

// ChainTiming is the settlement profile of a chain
type ChainTiming struct {
	BlockTimeSeconds float64
	Confirmations    int
}

// Seconds is the expected time to finality, rounded up
func (t ChainTiming) Seconds() int {
	total := t.BlockTimeSeconds * float64(t.Confirmations)
	s := int(total)
	if float64(s) < total {
		s++
	}
	return s
}

// DefaultTiming applies to chains missing from the table
var DefaultTiming = ChainTiming{BlockTimeSeconds: 12, Confirmations: 2}

// TimingTable maps chain IDs to settlement profiles
type TimingTable map[int64]ChainTiming

// DefaultTimingTable returns block times and confirmation counts for the built-in chains
func DefaultTimingTable() TimingTable {
	return TimingTable{
		entities.ChainEthereum:  {BlockTimeSeconds: 12, Confirmations: 2},
		entities.ChainOptimism:  {BlockTimeSeconds: 2, Confirmations: 5},
		entities.ChainBSC:       {BlockTimeSeconds: 3, Confirmations: 5},
		entities.ChainPolygon:   {BlockTimeSeconds: 2, Confirmations: 10},
		entities.ChainBase:      {BlockTimeSeconds: 2, Confirmations: 5},
		entities.ChainArbitrum:  {BlockTimeSeconds: 0.25, Confirmations: 20},
		entities.ChainAvalanche: {BlockTimeSeconds: 2, Confirmations: 3},
		entities.ChainSolana:    {BlockTimeSeconds: 0.4, Confirmations: 32},
		entities.ChainSui:       {BlockTimeSeconds: 0.5, Confirmations: 3},
	}
}

// Lookup returns the chain's timing or DefaultTiming
func (t TimingTable) Lookup(chainID int64) ChainTiming {
	if timing, ok := t[chainID]; ok {
		return timing
	}
	return DefaultTiming
}

// SwapSeconds estimates a swap from chainIn to chainOut. Cross-chain swaps
// wait for finality on both sides.
func (t TimingTable) SwapSeconds(chainIn, chainOut int64) int {
	secs := t.Lookup(chainIn).Seconds()
	if chainOut != 0 && chainOut != chainIn {
		secs += t.Lookup(chainOut).Seconds()
	}
	return secs
}
