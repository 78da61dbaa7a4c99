package convert

import (
	"testing"
	"time"
)

func TestStatsSnapshotPercentiles(t *testing.T) {
	stats := NewStats(time.Hour)
	for _, ms := range []int64{100, 200, 300, 400, 500} {
		stats.Record("", time.Duration(ms)*time.Millisecond)
	}

	snap := stats.Snapshot().Latency
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestStatsCountsOutcomes(t *testing.T) {
	stats := NewStats(time.Hour)
	stats.Record("", time.Millisecond)
	stats.Record(MalformedStructure, time.Millisecond)
	stats.Record(MalformedStructure, time.Millisecond)
	stats.Record(InvalidInput, 0)

	snap := stats.Snapshot()
	if snap.Succeeded != 1 {
		t.Fatalf("expected 1 success, got %d", snap.Succeeded)
	}
	if snap.Failed[MalformedStructure] != 2 || snap.Failed[InvalidInput] != 1 {
		t.Fatalf("unexpected failure counts: %v", snap.Failed)
	}

	// The snapshot is a copy.
	snap.Failed[Internal] = 9
	if stats.Snapshot().Failed[Internal] != 0 {
		t.Fatal("snapshot shares state with Stats")
	}
}

func TestStatsPrunesExpiredSamples(t *testing.T) {
	stats := NewStats(10 * time.Millisecond)
	stats.Record("", 100*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	snap := stats.Snapshot()
	if snap.Latency.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Latency.Count)
	}
	if snap.Succeeded != 1 {
		t.Fatalf("outcome counters must not be pruned, got %d", snap.Succeeded)
	}
}

func TestStatsRecordClampsNegativeDuration(t *testing.T) {
	stats := NewStats(time.Hour)
	stats.Record("", -10*time.Millisecond)
	snap := stats.Snapshot().Latency
	if snap.Count != 1 || snap.MinMs != 0 {
		t.Fatalf("expected one clamped sample, got %+v", snap)
	}
}
