package tracer

import "math"

// The BlockScheduler interface is implemented by all block scheduling algorithms.
type BlockScheduler interface {
	// Split frame into blocks of variable height and assign to the pool
	// of tracers using feedback collected from previous passes.
	//
	// This function returns the block height assignment for each tracer
	// in the input list. Heights always sum to frameH.
	Schedule(tracers []Tracer, frameH uint32) []uint32
}

// The perfect scheduler assumes that the volume of tracing work between two
// subsequent passes is approximately the same.
type perfectScheduler struct {
	blockAssignment []uint32
}

// Create a new perfect scheduler instance.
func NewPerfectScheduler() BlockScheduler {
	return &perfectScheduler{}
}

// Split frame into blocks of variable height and assign to the pool
// of tracers using feedback collected from previous passes.
//
// Until every tracer has completed at least one pass the assignment is
// derived from the tracers' speed estimates. After that each tracer w is
// assigned rows proportionally to its measured row throughput:
// rate_w = blockH_w / passTime_w, share_w = rate_w / Σ rate.
func (sch *perfectScheduler) Schedule(tracers []Tracer, frameH uint32) []uint32 {
	var total float64
	var scaler float64

	if len(sch.blockAssignment) != len(tracers) {
		sch.blockAssignment = make([]uint32, len(tracers))
	}

	// Fall back to static speed estimates until feedback is available
	// for the entire pool.
	useEstimates := false
	for _, tr := range tracers {
		stats := tr.Stats()
		if stats.Passes == 0 || stats.PassTime == 0 {
			useEstimates = true
			break
		}
	}

	var scheduledRows uint32
	if useEstimates {
		for _, tr := range tracers {
			total += float64(tr.SpeedEstimate())
		}
		scaler = float64(frameH) / total

		for idx, tr := range tracers {
			sch.blockAssignment[idx] = uint32(math.Max(1.0, math.Floor(float64(tr.SpeedEstimate())*scaler)))
			scheduledRows += sch.blockAssignment[idx]
		}
	} else {
		for _, tr := range tracers {
			stats := tr.Stats()
			total += float64(stats.BlockH) / float64(stats.PassTime)
		}
		scaler = float64(frameH) / total

		for idx, tr := range tracers {
			stats := tr.Stats()
			sch.blockAssignment[idx] = uint32(math.Max(1.0, math.Floor(float64(stats.BlockH)/float64(stats.PassTime)*scaler)))
			scheduledRows += sch.blockAssignment[idx]
		}
	}

	// In case rows don't add up to the frame height append the missing
	// ones to the first tracer.
	sch.blockAssignment[0] += frameH - scheduledRows

	return sch.blockAssignment
}
