package processor

import (
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"DeliveryOptimizer/src/utils"
)

func TestNormalizeColumnsIsIdempotent(t *testing.T) {
	df := *frame(t, [][]string{
		{" Order_ID ", "Distance_KM"},
		{"ORD1", "10"},
	})

	once := NormalizeColumns(df)
	twice := NormalizeColumns(once)

	want := []string{"order_id", "distance_km"}
	for i, n := range twice.Names() {
		if n != want[i] {
			t.Errorf("column %d = %q, want %q", i, n, want[i])
		}
	}
}

func TestEngineerFeaturesEmptyTableStillNormalized(t *testing.T) {
	df := dataframe.New(
		series.New([]string{}, series.String, " Order_ID "),
		series.New([]string{}, series.String, "Delivery_Cost_INR"),
	)

	out := EngineerFeatures(df, FillZero)
	if out.Err != nil {
		t.Fatalf("EngineerFeatures: %v", out.Err)
	}
	if out.Nrow() != 0 {
		t.Errorf("Nrow = %d, want 0", out.Nrow())
	}

	// 空表同样应用列名规范化和重命名
	for _, col := range []string{"order_id", "delivery_cost"} {
		if !utils.HasColumn(out, col) {
			t.Errorf("missing column %s, columns = %v", col, out.Names())
		}
	}
}

func TestEngineerFeaturesTimestampSchema(t *testing.T) {
	df := *frame(t, [][]string{
		{"order_id", "order_date", "promised_time", "actual_delivery_time"},
		{"ORD1", "2024-03-04 10:30:00", "2024-03-04 12:00:00", "2024-03-04 12:45:00"},
		{"ORD2", "2024-03-05", "2024-03-05 09:00:00", "2024-03-05 08:30:00"},
		{"ORD3", "bogus", "", "2024-03-06 10:00:00"},
	})

	out := EngineerFeatures(df, FillZero)
	if out.Err != nil {
		t.Fatalf("EngineerFeatures: %v", out.Err)
	}

	// 2024-03-04 是周一
	if got := out.Col(ColOrderWeekday).Elem(0).String(); got != "Monday" {
		t.Errorf("order_weekday = %q, want Monday", got)
	}
	if got := out.Col(ColOrderHour).Float()[0]; got != 10 {
		t.Errorf("order_hour = %v, want 10", got)
	}
	// 纯日期没有时间部分
	if !out.Col(ColOrderHour).Elem(1).IsNA() {
		t.Error("order_hour should be NA for date-only order_date")
	}
	if !out.Col(ColOrderWeekday).Elem(2).IsNA() {
		t.Error("order_weekday should be NA for unparseable order_date")
	}

	gaps := out.Col(ColGapMinutes).Float()
	if gaps[0] != 45 {
		t.Errorf("gap row 0 = %v, want 45", gaps[0])
	}
	if gaps[1] != -30 {
		t.Errorf("gap row 1 = %v, want -30 (early delivery)", gaps[1])
	}
	if !math.IsNaN(gaps[2]) {
		t.Errorf("gap row 2 = %v, want NaN", gaps[2])
	}

	flags := out.Col(ColDelayFlag).Float()
	if flags[0] != 1 || flags[1] != 0 {
		t.Errorf("delay_flag = %v, want [1 0 NaN]", flags)
	}
	if !math.IsNaN(flags[2]) {
		t.Error("delay_flag should be NA where the gap is undefined")
	}
}

func TestEngineerFeaturesDayCountSchema(t *testing.T) {
	df := *frame(t, [][]string{
		{"Order_ID", "Promised_Delivery_Days", "Actual_Delivery_Days"},
		{"ORD1", "3", "5"},
		{"ORD2", "4", "4"},
		{"ORD3", "2", ""},
	})

	out := EngineerFeatures(df, FillZero)
	if out.Err != nil {
		t.Fatalf("EngineerFeatures: %v", out.Err)
	}

	if !utils.HasColumn(out, ColPromisedDays) || !utils.HasColumn(out, ColActualDays) {
		t.Fatalf("rename table not applied, columns = %v", out.Names())
	}

	gaps := out.Col(ColGapDays).Float()
	flags := out.Col(ColDelayFlag).Float()
	if gaps[0] != 2 || flags[0] != 1 {
		t.Errorf("row 0: gap=%v flag=%v, want 2/1", gaps[0], flags[0])
	}
	if gaps[1] != 0 || flags[1] != 0 {
		t.Errorf("row 1: gap=%v flag=%v, want 0/0", gaps[1], flags[1])
	}
	if !math.IsNaN(flags[2]) {
		t.Error("row 2: delay_flag should be NA")
	}
}

func TestEngineerFeaturesNoDelaySchema(t *testing.T) {
	df := *frame(t, [][]string{
		{"order_id", "priority"},
		{"ORD1", "High"},
	})

	out := EngineerFeatures(df, FillZero)
	if utils.HasColumn(out, ColDelayFlag) {
		t.Error("delay_flag should not exist when neither schema's inputs are present")
	}
}

func TestCoerceNumericsPolicies(t *testing.T) {
	records := [][]string{
		{"order_id", "distance_km", "delivery_cost"},
		{"ORD1", "120.5", "900"},
		{"ORD2", "n/a", "1100"},
	}

	t.Run("zero", func(t *testing.T) {
		out := EngineerFeatures(*frame(t, records), FillZero)
		if got := out.Col("distance_km").Float()[1]; got != 0 {
			t.Errorf("distance_km = %v, want 0 under zero fill", got)
		}
	})

	t.Run("propagate", func(t *testing.T) {
		out := EngineerFeatures(*frame(t, records), FillPropagate)
		if got := out.Col("distance_km").Float()[1]; !math.IsNaN(got) {
			t.Errorf("distance_km = %v, want NaN under propagate", got)
		}
		if got := out.Nrow(); got != 2 {
			t.Errorf("Nrow = %d, want 2", got)
		}
	})

	t.Run("drop_row", func(t *testing.T) {
		out := EngineerFeatures(*frame(t, records), FillDropRow)
		if got := out.Nrow(); got != 1 {
			t.Fatalf("Nrow = %d, want 1 after dropping the bad row", got)
		}
		if got := out.Col("order_id").Elem(0).String(); got != "ORD1" {
			t.Errorf("kept row = %q, want ORD1", got)
		}
	})
}

func TestEngineerFeaturesDeterministic(t *testing.T) {
	records := [][]string{
		{"order_id", "order_date", "promised_delivery_days", "actual_delivery_days", "distance_km"},
		{"ORD1", "2024-03-04 10:00:00", "3", "5", "100"},
		{"ORD2", "2024-03-05 11:00:00", "2", "1", "bad"},
	}

	a := EngineerFeatures(*frame(t, records), FillZero)
	b := EngineerFeatures(*frame(t, records), FillZero)

	ra := a.Records()
	rb := b.Records()
	if len(ra) != len(rb) {
		t.Fatalf("row counts differ: %d vs %d", len(ra), len(rb))
	}
	for i := range ra {
		for j := range ra[i] {
			if ra[i][j] != rb[i][j] {
				t.Fatalf("cell (%d,%d) differs: %q vs %q", i, j, ra[i][j], rb[i][j])
			}
		}
	}
}
