package gpu

import (
	"context"
	"time"

	"whisperd/internal/models"
)

// Sampler polls one device at a fixed interval while a job runs on it. The
// worker starts it right before the inference call and stops it right after;
// Stop always takes a final snapshot, so every job gets at least one data
// point even when inference finishes inside the first interval.
type Sampler struct {
	src      Source
	index    int
	interval time.Duration

	stop chan struct{}
	done chan struct{}

	utils   []float64
	mems    []float64
	totalMB float64
}

func NewSampler(src Source, index int, interval time.Duration) *Sampler {
	return &Sampler{
		src:      src,
		index:    index,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sampling loop. The loop owns the sample slices until
// Stop has joined it.
func (s *Sampler) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				m, err := s.src.Sample(context.Background(), s.index)
				if err != nil {
					continue
				}
				s.utils = append(s.utils, m.UtilPercent)
				s.mems = append(s.mems, m.VRAMUsedMB)
				if m.VRAMTotalMB > 0 {
					s.totalMB = m.VRAMTotalMB
				}
			}
		}
	}()
}

// Stop joins the loop, takes the end-of-job snapshot and folds everything
// into aggregate stats.
func (s *Sampler) Stop(ctx context.Context) models.GPUStats {
	close(s.stop)
	<-s.done

	final, err := s.src.Sample(ctx, s.index)
	if err != nil {
		final = Metrics{}
	}
	if s.totalMB == 0 && final.VRAMTotalMB > 0 {
		s.totalMB = final.VRAMTotalMB
	}

	utilAvg, utilMax := aggregate(s.utils, final.UtilPercent)
	memAvg, memMax := aggregate(s.mems, final.VRAMUsedMB)

	stats := models.GPUStats{
		Index:          s.index,
		UtilAvgPercent: utilAvg,
		UtilMaxPercent: utilMax,
		VRAMTotalMB:    s.totalMB,
		VRAMUsedAvgMB:  memAvg,
		VRAMUsedMaxMB:  memMax,
	}
	if s.totalMB > 0 {
		stats.VRAMUsedPercent = final.VRAMUsedMB / s.totalMB * 100.0
		stats.VRAMUsedPercentMax = memMax / s.totalMB * 100.0
	}
	return stats
}

// aggregate returns avg and max of the samples, falling back to the final
// snapshot when the periodic loop captured none.
func aggregate(samples []float64, fallback float64) (avg, max float64) {
	if len(samples) == 0 {
		return fallback, fallback
	}
	var sum float64
	max = samples[0]
	for _, v := range samples {
		sum += v
		if v > max {
			max = v
		}
	}
	return sum / float64(len(samples)), max
}
