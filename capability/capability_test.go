package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/sheetbridge/mcperr"
)

func TestCache_FetchesOnceAndMemoizes(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, sessionID, peerHandle string) (Descriptor, error) {
		calls++
		return Descriptor{Elicitation: true}, nil
	}

	c := New(NewMemoryTier(), nil, fetch, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := c.Get(ctx, "s1", "peer")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !d.Elicitation {
			t.Fatal("expected Elicitation=true")
		}
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestCache_DistinctSessionsDoNotShareEntries(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, sessionID, peerHandle string) (Descriptor, error) {
		calls++
		return Descriptor{Sampling: sessionID == "s1"}, nil
	}
	c := New(NewMemoryTier(), nil, fetch, nil, nil)
	ctx := context.Background()

	d1, _ := c.Get(ctx, "s1", "peer")
	d2, _ := c.Get(ctx, "s2", "peer")
	if !d1.Sampling || d2.Sampling {
		t.Errorf("Get() results = %+v, %+v, want distinct per session", d1, d2)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times, want 2", calls)
	}
}

func TestCache_FallsBackToDistributedTierBeforeFetching(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	defer mr.Close()

	distributed := NewRedisTier(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "cap:")
	ctx := context.Background()
	distributed.Set(ctx, key("s1", "peer"), Descriptor{Elicitation: true, Sampling: true}, TTL)

	calls := 0
	fetch := func(ctx context.Context, sessionID, peerHandle string) (Descriptor, error) {
		calls++
		return Descriptor{}, nil
	}

	c := New(NewMemoryTier(), distributed, fetch, nil, nil)
	d, err := c.Get(ctx, "s1", "peer")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !d.Elicitation || !d.Sampling {
		t.Errorf("Get() = %+v, want the distributed tier's descriptor", d)
	}
	if calls != 0 {
		t.Errorf("fetch called %d times, want 0 (should have hit the distributed tier)", calls)
	}
}

func TestCache_RequireElicitationReturnsTypedUnavailable(t *testing.T) {
	c := New(NewMemoryTier(), nil, func(ctx context.Context, s, p string) (Descriptor, error) {
		return Descriptor{Elicitation: false}, nil
	}, nil, nil)

	mErr := c.RequireElicitation(context.Background(), "s1", "peer")
	if mErr == nil || mErr.Code != mcperr.KindElicitationUnavailable {
		t.Fatalf("RequireElicitation() = %v, want ELICITATION_UNAVAILABLE", mErr)
	}
}

func TestCache_RequireSamplingPassesWhenAdvertised(t *testing.T) {
	c := New(NewMemoryTier(), nil, func(ctx context.Context, s, p string) (Descriptor, error) {
		return Descriptor{Sampling: true}, nil
	}, nil, nil)

	if mErr := c.RequireSampling(context.Background(), "s1", "peer"); mErr != nil {
		t.Errorf("RequireSampling() = %v, want nil", mErr)
	}
}

func TestCache_FetchErrorPropagates(t *testing.T) {
	c := New(NewMemoryTier(), nil, func(ctx context.Context, s, p string) (Descriptor, error) {
		return Descriptor{}, errors.New("handshake not complete")
	}, nil, nil)

	if _, err := c.Get(context.Background(), "s1", "peer"); err == nil {
		t.Fatal("expected Get() to propagate the fetch error")
	}
}
