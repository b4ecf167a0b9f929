package types

import (
	"go.uber.org/zap/zapcore"
)

func (c Challenge) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("chunk_index", c.ChunkIndex)
	enc.AddUint64("offset", c.Offset)
	enc.AddUint64("size", c.Size)
	return nil
}

func (t DealTimeline) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("start_block", t.StartBlock.Uint64())
	enc.AddUint64("length_in_blocks", t.LengthInBlocks.Uint64())
	enc.AddUint64("proof_frequency_in_blocks", t.ProofFrequencyInBlocks.Uint64())
	return nil
}

func (w ProofWindow) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("index", w.Index)
	enc.AddUint64("target_block", w.TargetBlock.Uint64())
	enc.AddUint64("expiry_block", w.ExpiryBlock.Uint64())
	return nil
}

func (s WindowState) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("status", s.Status.String())
	if s.Status == StatusActive {
		return enc.AddObject("window", s.Window)
	}
	return nil
}

func (p Proof) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("deal_id", uint64(p.DealID))
	enc.AddUint64("window", p.Window)
	enc.AddUint64("target_block", p.TargetBlock.Uint64())
	enc.AddInt("proof_bytes", len(p.Data))
	return enc.AddObject("challenge", p.Challenge)
}
