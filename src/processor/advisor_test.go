package processor

import (
	"testing"
)

func TestAdviseAllRulesFire(t *testing.T) {
	row := *frame(t, [][]string{
		{"order_id", "distance_km", "traffic_delay", "priority", "delivery_cost", "eta_gap_days"},
		{"ORD1", "300", "90", "low", "6000", "5"},
	})

	got := Advise(row)
	if len(got) != 3 {
		t.Fatalf("suggestions = %v, want all 3 rules to fire", got)
	}
	for _, s := range got {
		if s == NoActionMessage {
			t.Error("no-action message must not appear alongside suggestions")
		}
	}
}

func TestAdviseNoRulesFire(t *testing.T) {
	row := *frame(t, [][]string{
		{"order_id", "distance_km", "traffic_delay", "priority", "delivery_cost", "eta_gap_days"},
		{"ORD1", "10", "5", "high", "100", "0"},
	})

	got := Advise(row)
	if len(got) != 1 || got[0] != NoActionMessage {
		t.Fatalf("suggestions = %v, want exactly [%q]", got, NoActionMessage)
	}
}

func TestAdviseRulesAreIndependent(t *testing.T) {
	// 只有低优先级+高成本规则命中
	row := *frame(t, [][]string{
		{"order_id", "distance_km", "traffic_delay", "priority", "delivery_cost"},
		{"ORD1", "300", "10", "LOW", "5001"},
	})

	got := Advise(row)
	if len(got) != 1 {
		t.Fatalf("suggestions = %v, want exactly one", got)
	}
	if got[0] == NoActionMessage {
		t.Error("expected the consolidation suggestion, got no-action")
	}
}

func TestAdviseMissingColumnsSkipRules(t *testing.T) {
	row := *frame(t, [][]string{
		{"order_id"},
		{"ORD1"},
	})

	got := Advise(row)
	if len(got) != 1 || got[0] != NoActionMessage {
		t.Fatalf("suggestions = %v, want [%q] when all referenced columns are missing", got, NoActionMessage)
	}
}
