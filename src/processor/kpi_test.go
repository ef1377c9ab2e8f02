package processor

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
)

func TestComputeKPIsEmptyTable(t *testing.T) {
	k := ComputeKPIs(dataframe.DataFrame{})
	if k.TotalOrders != 0 {
		t.Errorf("TotalOrders = %d, want 0", k.TotalOrders)
	}
	if !math.IsNaN(k.OnTimePct) || !math.IsNaN(k.AvgDeliveryCost) || !math.IsNaN(k.AvgDistanceKM) {
		t.Errorf("empty table KPIs should be undefined: %+v", k)
	}
}

func TestComputeKPIs(t *testing.T) {
	df := EngineerFeatures(*frame(t, [][]string{
		{"order_id", "promised_delivery_days", "actual_delivery_days", "delivery_cost", "distance_km"},
		{"ORD1", "3", "5", "1000", "100"},
		{"ORD2", "3", "2", "2000", "300"},
		{"ORD3", "3", "3", "3000", "200"},
		{"ORD4", "", "", "bad", "bad"},
	}), FillPropagate)

	k := ComputeKPIs(df)
	if k.TotalOrders != 4 {
		t.Errorf("TotalOrders = %d, want 4", k.TotalOrders)
	}
	// delay_flag定义的3行中1行延误 → 准时率 2/3
	want := 100 * (1 - 1.0/3.0)
	if math.Abs(k.OnTimePct-want) > 1e-9 {
		t.Errorf("OnTimePct = %v, want %v", k.OnTimePct, want)
	}
	if k.AvgDeliveryCost != 2000 {
		t.Errorf("AvgDeliveryCost = %v, want 2000 (NA skipped)", k.AvgDeliveryCost)
	}
	if k.AvgDistanceKM != 200 {
		t.Errorf("AvgDistanceKM = %v, want 200 (NA skipped)", k.AvgDistanceKM)
	}
}

func TestComputeKPIsMissingColumns(t *testing.T) {
	df := EngineerFeatures(*frame(t, [][]string{
		{"order_id", "priority"},
		{"ORD1", "High"},
	}), FillZero)

	k := ComputeKPIs(df)
	if k.TotalOrders != 1 {
		t.Errorf("TotalOrders = %d, want 1", k.TotalOrders)
	}
	if !math.IsNaN(k.OnTimePct) {
		t.Errorf("OnTimePct = %v, want undefined without delay_flag", k.OnTimePct)
	}
	if !math.IsNaN(k.AvgDeliveryCost) {
		t.Errorf("AvgDeliveryCost = %v, want undefined without column", k.AvgDeliveryCost)
	}
}

func TestKPISummaryJSONEncodesNaNAsNull(t *testing.T) {
	k := ComputeKPIs(dataframe.DataFrame{})
	data, err := json.Marshal(k)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"on_time_pct":null`) {
		t.Errorf("JSON = %s, want on_time_pct null", data)
	}
	if !strings.Contains(string(data), `"total_orders":0`) {
		t.Errorf("JSON = %s, want total_orders 0", data)
	}
}

func TestDelayRateByWeekday(t *testing.T) {
	df := EngineerFeatures(*frame(t, [][]string{
		{"order_id", "order_date", "promised_delivery_days", "actual_delivery_days"},
		{"ORD1", "2024-03-04 10:00:00", "3", "5"}, // Monday, late
		{"ORD2", "2024-03-04 11:00:00", "3", "2"}, // Monday, on time
		{"ORD3", "2024-03-05 12:00:00", "3", "4"}, // Tuesday, late
	}), FillZero)

	rates := DelayRateByWeekday(df)
	if got := rates["Monday"]; got != 0.5 {
		t.Errorf("Monday rate = %v, want 0.5", got)
	}
	if got := rates["Tuesday"]; got != 1 {
		t.Errorf("Tuesday rate = %v, want 1", got)
	}
}
