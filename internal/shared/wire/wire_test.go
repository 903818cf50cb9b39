package wire

import (
	"encoding/json"
	"testing"
)

func TestSegmentResultNotCompleted(t *testing.T) {
	out, err := json.Marshal(SegmentResult{Segment: "Gate Pair 1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"segment":"Gate Pair 1","timeSec":"N/A","valid":false}` {
		t.Fatalf("unexpected payload: %s", out)
	}

	var back SegmentResult
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Completed || back.TimeSec != 0 {
		t.Fatalf("expected not completed, got %+v", back)
	}
}

func TestSegmentResultCompleted(t *testing.T) {
	out, err := json.Marshal(SegmentResult{Segment: "Climb", TimeSec: 42, Completed: true, Valid: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back SegmentResult
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Completed || back.TimeSec != 42 || !back.Valid {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}
