package types

import (
	"math/bits"
	"strconv"
)

// BlockNum is an Ethereum block number. Arithmetic is checked: any operation
// that would wrap returns ErrOverflow instead.
type BlockNum uint64

func (b BlockNum) String() string {
	return strconv.FormatUint(uint64(b), 10)
}

func (b BlockNum) Uint64() uint64 {
	return uint64(b)
}

func (b BlockNum) Add(o BlockNum) (BlockNum, error) {
	sum, carry := bits.Add64(uint64(b), uint64(o), 0)
	if carry != 0 {
		return 0, NewErrorf(KindOverflow, "%d + %d overflows", b, o)
	}
	return BlockNum(sum), nil
}

func (b BlockNum) Sub(o BlockNum) (BlockNum, error) {
	diff, borrow := bits.Sub64(uint64(b), uint64(o), 0)
	if borrow != 0 {
		return 0, NewErrorf(KindOverflow, "%d - %d underflows", b, o)
	}
	return BlockNum(diff), nil
}

func (b BlockNum) Mul(n uint64) (BlockNum, error) {
	hi, lo := bits.Mul64(uint64(b), n)
	if hi != 0 {
		return 0, NewErrorf(KindOverflow, "%d * %d overflows", b, n)
	}
	return BlockNum(lo), nil
}

func (b BlockNum) Div(o BlockNum) (uint64, error) {
	if o == 0 {
		return 0, ErrDivisionByZero
	}
	return uint64(b) / uint64(o), nil
}

// CeilDiv returns ceil(b / o) without the intermediate b+o-1 overflowing.
func (b BlockNum) CeilDiv(o BlockNum) (uint64, error) {
	if o == 0 {
		return 0, ErrDivisionByZero
	}
	q := uint64(b) / uint64(o)
	if uint64(b)%uint64(o) != 0 {
		q++
	}
	return q, nil
}

// DealID is the on-chain id of a deal.
type DealID uint64

func (d DealID) String() string {
	return strconv.FormatUint(uint64(d), 10)
}
