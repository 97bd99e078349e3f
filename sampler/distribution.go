package sampler

import (
	"math"
	"math/rand"
)

// Fixed noise and policy bounds of the per-row generators
const (
	LatencyAvgFloor = 10.0

	P95MultiplierMin = 1.5
	P95MultiplierMax = 2.5

	CPUNoiseStd = 3.0
	CPUUtilMin  = 20.0
	CPUUtilMax  = 95.0

	MemNoiseStd = 2.0
	MemUtilMin  = 30.0
	MemUtilMax  = 80.0

	BlockSizeNoiseStd = 50.0
	BlockSizeMin      = 500
	BlockSizeMax      = 2500

	CommitNoiseStd     = 5.0
	BlockCommitTimeMin = 30.0
	BlockCommitTimeMax = 200.0
)

// ClampedNormal draws from Normal(Mean, Std) and clamps the result to [Min, Max].
// Use math.Inf for an open side.
type ClampedNormal struct {
	Mean float64
	Std  float64
	Min  float64
	Max  float64
}

// Sample draws one value
func (d ClampedNormal) Sample(rng *rand.Rand) float64 {
	v := d.Mean
	if d.Std > 0 {
		v += rng.NormFloat64() * d.Std
	}
	return clamp(v, d.Min, d.Max)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// GenerateTxRate draws throughput in TPS. Slower crypto (factor < 1) scales the target down.
func GenerateTxRate(rng *rand.Rand, load LoadProfile, performanceFactor float64) float64 {
	target := load.TargetTPS * performanceFactor
	return ClampedNormal{
		Mean: target,
		Std:  target * load.Variance,
		Min:  load.MinTPS,
		Max:  load.MaxTPS,
	}.Sample(rng)
}

// GenerateLatencyAvg draws average latency in ms, inflated by the crypto latency overhead
func GenerateLatencyAvg(rng *rand.Rand, load LoadProfile, latencyOverhead float64) float64 {
	mean := load.LatencyBase * latencyOverhead
	return ClampedNormal{
		Mean: mean,
		Std:  mean * load.LatencyVariance,
		Min:  LatencyAvgFloor,
		Max:  math.Inf(1),
	}.Sample(rng)
}

// GenerateLatencyP95 derives p95 latency as a clamped random multiple of latencyAvg,
// so p95 >= 1.5 * avg always holds.
func GenerateLatencyP95(rng *rand.Rand, latencyAvg, multiplierMean, multiplierStd float64) float64 {
	multiplier := ClampedNormal{
		Mean: multiplierMean,
		Std:  multiplierStd,
		Min:  P95MultiplierMin,
		Max:  P95MultiplierMax,
	}.Sample(rng)
	return latencyAvg * multiplier
}

// GenerateCPUUtil draws CPU utilisation percent
func GenerateCPUUtil(rng *rand.Rand, load LoadProfile, cpuOverhead float64) float64 {
	return ClampedNormal{
		Mean: load.CPUBase * cpuOverhead,
		Std:  CPUNoiseStd,
		Min:  CPUUtilMin,
		Max:  CPUUtilMax,
	}.Sample(rng)
}

// GenerateMemUtil draws memory utilisation percent; it grows with txRate
func GenerateMemUtil(rng *rand.Rand, load LoadProfile, txRate, sensitivity float64) float64 {
	return ClampedNormal{
		Mean: load.MemBase + (txRate/100.0)*sensitivity*100,
		Std:  MemNoiseStd,
		Min:  MemUtilMin,
		Max:  MemUtilMax,
	}.Sample(rng)
}

// GenerateBlockSize draws block size in bytes; larger txRate means larger batches
func GenerateBlockSize(rng *rand.Rand, txRate, base, txRateFactor float64) int {
	v := ClampedNormal{
		Mean: base + (txRate/100.0)*txRateFactor*100,
		Std:  BlockSizeNoiseStd,
		Min:  BlockSizeMin,
		Max:  BlockSizeMax,
	}.Sample(rng)
	return int(v)
}

// GenerateBlockCommitTime draws commit time in ms from block size and crypto overhead
func GenerateBlockCommitTime(rng *rand.Rand, blockSize int, cfg BlockCommitTimeConfig) float64 {
	blockKB := float64(blockSize) / 1024.0
	return ClampedNormal{
		Mean: cfg.Base + blockKB*cfg.BlockSizeSensitivity*1000 + cfg.CryptoOverheadFactor*10,
		Std:  CommitNoiseStd,
		Min:  BlockCommitTimeMin,
		Max:  BlockCommitTimeMax,
	}.Sample(rng)
}

// GenerateSigGenTime draws signature generation time in μs
func GenerateSigGenTime(rng *rand.Rand, mode CryptoModeProfile) float64 {
	return mode.SigGenTime.Distribution().Sample(rng)
}

// GenerateSigVerifyTime draws signature verification time in μs
func GenerateSigVerifyTime(rng *rand.Rand, mode CryptoModeProfile) float64 {
	return mode.SigVerifyTime.Distribution().Sample(rng)
}

// GenerateTimestamp returns start + index*interval. Index 0 yields start exactly.
func GenerateTimestamp(start float64, index int, interval float64) float64 {
	return start + float64(index)*interval
}
