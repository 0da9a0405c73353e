package profiler

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestProfilerTick(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewProfiler(zap.New(core))
	p.SetInterval(time.Hour)

	for range 10 {
		if p.Tick(time.Millisecond) {
			t.Fatal("Tick() logged before the interval elapsed")
		}
	}
	if logs.Len() != 0 {
		t.Fatalf("got %d log entries, want 0", logs.Len())
	}

	p.SetInterval(-time.Second)
	if p.updateInterval != time.Hour {
		t.Errorf("SetInterval() accepted a negative interval")
	}

	p.SetInterval(time.Nanosecond)
	time.Sleep(time.Millisecond)
	if !p.Tick(3 * time.Millisecond) {
		t.Fatal("Tick() did not log after the interval elapsed")
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if worst, ok := fields["frame_worst"].(time.Duration); !ok || worst != 3*time.Millisecond {
		t.Errorf("frame_worst = %v, want 3ms", fields["frame_worst"])
	}
	if fps, ok := fields["fps"].(float64); !ok || fps <= 0 {
		t.Errorf("fps = %v, want a positive rate", fields["fps"])
	}

	// Counters reset after each report.
	if p.frameCount != 0 || p.worst != 0 || p.busy != 0 {
		t.Errorf("counters not reset: frames %d worst %v busy %v", p.frameCount, p.worst, p.busy)
	}
}
