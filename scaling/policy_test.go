package scaling

import (
	"testing"

	"github.com/ariadne-eng/queryengine/model"
)

func TestComputeTiny(t *testing.T) {
	p := Compute(model.DatasetProfile{ChunkCount: 5, TotalBytes: 15_000})
	if p.Tier != model.TierTiny {
		t.Fatalf("expected tiny, got %s", p.Tier)
	}
	if p.BatchSize == nil || *p.BatchSize != 1 {
		t.Errorf("expected batch_size=1, got %v", p.BatchSize)
	}
	if p.MaxConcurrency == nil || *p.MaxConcurrency != 5 {
		t.Errorf("expected concurrency=5, got %v", p.MaxConcurrency)
	}
	if p.TopK != nil {
		t.Errorf("expected nil top_k for tiny, got %v", *p.TopK)
	}
	if p.MaxChunksLoaded != nil {
		t.Errorf("expected nil max_chunks for tiny, got %v", *p.MaxChunksLoaded)
	}
}

func TestComputeSmall(t *testing.T) {
	p := Compute(model.DatasetProfile{ChunkCount: 50, TotalBytes: 150_000})
	if p.Tier != model.TierSmall || *p.BatchSize != 5 || *p.MaxConcurrency != 15 || *p.TopK != 100 {
		t.Fatalf("unexpected small profile: %+v", p)
	}
	if p.MaxChunksLoaded != nil {
		t.Errorf("expected nil max_chunks for small, got %v", *p.MaxChunksLoaded)
	}
}

func TestComputeMedium(t *testing.T) {
	p := Compute(model.DatasetProfile{ChunkCount: 250, TotalBytes: 750_000})
	if p.Tier != model.TierMedium || *p.BatchSize != 10 || *p.MaxConcurrency != 30 || *p.TopK != 200 || *p.MaxChunksLoaded != 100 {
		t.Fatalf("unexpected medium profile: %+v", p)
	}
}

func TestComputeLarge(t *testing.T) {
	p := Compute(model.DatasetProfile{ChunkCount: 1000, TotalBytes: 3_000_000})
	if p.Tier != model.TierLarge || *p.BatchSize != 20 || *p.MaxConcurrency != 60 || *p.TopK != 400 || *p.MaxChunksLoaded != 200 {
		t.Fatalf("unexpected large profile: %+v", p)
	}
}

func TestComputeXLarge(t *testing.T) {
	p := Compute(model.DatasetProfile{ChunkCount: 5000, TotalBytes: 100_000_000})
	if p.Tier != model.TierXLarge || *p.BatchSize != 50 || *p.MaxConcurrency != 100 || *p.TopK != 500 || *p.MaxChunksLoaded != 300 {
		t.Fatalf("unexpected xlarge profile: %+v", p)
	}
}

func TestComputeBoundaries(t *testing.T) {
	cases := []struct {
		chunks int
		want   model.ScalingTier
	}{
		{19, model.TierTiny},
		{20, model.TierSmall},
		{99, model.TierSmall},
		{100, model.TierMedium},
		{499, model.TierMedium},
		{500, model.TierLarge},
		{1999, model.TierLarge},
		{2000, model.TierXLarge},
		{0, model.TierTiny},
	}
	for _, c := range cases {
		got := Compute(model.DatasetProfile{ChunkCount: c.chunks}).Tier
		if got != c.want {
			t.Errorf("chunks=%d: expected %s, got %s", c.chunks, c.want, got)
		}
	}
}

func TestTierOrdering(t *testing.T) {
	tiers := []model.ScalingTier{model.TierTiny, model.TierSmall, model.TierMedium, model.TierLarge, model.TierXLarge}
	for i := 0; i < len(tiers)-1; i++ {
		if !Less(tiers[i], tiers[i+1]) {
			t.Errorf("expected %s < %s", tiers[i], tiers[i+1])
		}
	}
}
