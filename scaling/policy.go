// Package scaling computes a resource envelope from dataset size: batch
// size, concurrency ceiling, search depth, and how many chunks to load. It
// is a pure function of model.DatasetProfile, deterministic and side-effect
// free by construction.
package scaling

import "github.com/ariadne-eng/queryengine/model"

func intp(v int) *int { return &v }

// Compute maps chunk_count to a tier and its recommendations. Tier
// boundaries and per-tier values match the reference resolver this policy
// was ported from: batch_size, concurrency, top_k, and max_chunks_loaded
// widen monotonically with dataset size, while tiny datasets get a nil
// top_k/max_chunks (meaning "use everything available", not a numeric cap).
func Compute(dataset model.DatasetProfile) model.ScalingProfile {
	n := dataset.ChunkCount

	switch {
	case n < 20:
		return model.ScalingProfile{
			Tier:           model.TierTiny,
			BatchSize:      intp(1),
			MaxConcurrency: intp(5),
			TopK:           nil,
			MaxChunksLoaded: nil,
		}
	case n < 100:
		return model.ScalingProfile{
			Tier:            model.TierSmall,
			BatchSize:       intp(5),
			MaxConcurrency:  intp(15),
			TopK:            intp(100),
			MaxChunksLoaded: nil,
		}
	case n < 500:
		return model.ScalingProfile{
			Tier:            model.TierMedium,
			BatchSize:       intp(10),
			MaxConcurrency:  intp(30),
			TopK:            intp(200),
			MaxChunksLoaded: intp(100),
		}
	case n < 2000:
		return model.ScalingProfile{
			Tier:            model.TierLarge,
			BatchSize:       intp(20),
			MaxConcurrency:  intp(60),
			TopK:            intp(400),
			MaxChunksLoaded: intp(200),
		}
	default:
		return model.ScalingProfile{
			Tier:            model.TierXLarge,
			BatchSize:       intp(50),
			MaxConcurrency:  intp(100),
			TopK:            intp(500),
			MaxChunksLoaded: intp(300),
		}
	}
}

// tierOrder gives the total order tiny < small < medium < large < xlarge,
// used only by tests that assert the ordering explicitly.
var tierOrder = map[model.ScalingTier]int{
	model.TierTiny:   0,
	model.TierSmall:  1,
	model.TierMedium: 2,
	model.TierLarge:  3,
	model.TierXLarge: 4,
}

// Less reports whether tier a ranks below tier b in the size ordering.
func Less(a, b model.ScalingTier) bool {
	return tierOrder[a] < tierOrder[b]
}
