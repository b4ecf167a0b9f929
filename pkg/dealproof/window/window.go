// Package window maps a deal's on-chain timeline onto a sequence of proving
// windows.
//
// Window i of a deal targets block start + i*frequency. It remains open until
// the next window's target or the deal's final block, whichever comes first.
// A deal of length L with frequency f has ceil(L/f) windows, so the last one
// may be shorter than f.
package window

import (
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

// NumWindows returns ceil(dealLength / windowSize).
func NumWindows(dealLength, windowSize types.BlockNum) (uint64, error) {
	return dealLength.CeilDiv(windowSize)
}

// Count returns the number of windows in the deal.
func Count(tl types.DealTimeline) (uint64, error) {
	if err := tl.Validate(); err != nil {
		return 0, err
	}
	return NumWindows(tl.LengthInBlocks, tl.ProofFrequencyInBlocks)
}

// Target returns the block whose hash seeds window idx's challenge.
func Target(tl types.DealTimeline, idx uint64) (types.BlockNum, error) {
	offset, err := tl.ProofFrequencyInBlocks.Mul(idx)
	if err != nil {
		return 0, err
	}
	return tl.StartBlock.Add(offset)
}

// Expiry returns the first block at which window idx can no longer be proven.
func Expiry(tl types.DealTimeline, idx uint64) (types.BlockNum, error) {
	final, err := tl.FinalBlock()
	if err != nil {
		return 0, err
	}
	next, err := Target(tl, idx+1)
	if err != nil {
		// the deal ends long before the overflowing target
		return final, nil
	}
	return min(next, final), nil
}

// Window returns window idx, which must exist.
func Window(tl types.DealTimeline, idx uint64) (types.ProofWindow, error) {
	n, err := Count(tl)
	if err != nil {
		return types.ProofWindow{}, err
	}
	if idx >= n {
		return types.ProofWindow{}, types.NewErrorf(types.KindInvalidInput, "window %d out of range, deal has %d windows", idx, n)
	}
	target, err := Target(tl, idx)
	if err != nil {
		return types.ProofWindow{}, err
	}
	expiry, err := Expiry(tl, idx)
	if err != nil {
		return types.ProofWindow{}, err
	}
	return types.ProofWindow{Index: idx, TargetBlock: target, ExpiryBlock: expiry}, nil
}

// Current returns the deal's state at block current.
func Current(tl types.DealTimeline, current types.BlockNum) (types.WindowState, error) {
	if err := tl.Validate(); err != nil {
		return types.WindowState{}, err
	}
	if current < tl.StartBlock {
		return types.WindowState{Status: types.StatusFuture}, nil
	}
	final, err := tl.FinalBlock()
	if err != nil {
		return types.WindowState{}, err
	}
	if current >= final {
		return types.WindowState{Status: types.StatusPast}, nil
	}
	elapsed, err := current.Sub(tl.StartBlock)
	if err != nil {
		return types.WindowState{}, err
	}
	idx, err := elapsed.Div(tl.ProofFrequencyInBlocks)
	if err != nil {
		return types.WindowState{}, err
	}
	w, err := Window(tl, idx)
	if err != nil {
		return types.WindowState{}, err
	}
	return types.WindowState{Status: types.StatusActive, Window: w}, nil
}

// Next returns the target block of the window following the one containing
// block last. Before the deal starts that is window 0. It returns false once
// the following window would start at or after the deal's final block.
func Next(tl types.DealTimeline, last types.BlockNum) (types.BlockNum, bool, error) {
	if err := tl.Validate(); err != nil {
		return 0, false, err
	}
	if last < tl.StartBlock {
		return tl.StartBlock, true, nil
	}
	since, err := last.Sub(tl.StartBlock)
	if err != nil {
		return 0, false, err
	}
	idx, err := since.Div(tl.ProofFrequencyInBlocks)
	if err != nil {
		return 0, false, err
	}
	elapsed, err := tl.ProofFrequencyInBlocks.Mul(idx + 1)
	if err != nil {
		return 0, false, err
	}
	if elapsed >= tl.LengthInBlocks {
		return 0, false, nil
	}
	target, err := tl.StartBlock.Add(elapsed)
	if err != nil {
		return 0, false, err
	}
	return target, true, nil
}

// IsExpired reports whether window idx is closed at block current.
func IsExpired(tl types.DealTimeline, idx uint64, current types.BlockNum) (bool, error) {
	expiry, err := Expiry(tl, idx)
	if err != nil {
		return false, err
	}
	return current >= expiry, nil
}
