package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"DeliveryOptimizer/src/processor"
)

// trainingFrame 构造一个延误与距离/路况强相关的数据表
func trainingFrame(t *testing.T, rows int) dataframe.DataFrame {
	t.Helper()

	records := [][]string{
		{"order_id", "order_date", "distance_km", "traffic_delay", "delivery_cost", "promised_delivery_days", "actual_delivery_days"},
	}
	for i := 0; i < rows; i++ {
		if i%2 == 0 {
			// 长距离重路况 → 延误
			records = append(records, []string{
				fmt.Sprintf("ORD%03d", i), "2024-03-04 10:00:00",
				fmt.Sprintf("%d", 300+i), "90", "6000", "3", "5",
			})
		} else {
			records = append(records, []string{
				fmt.Sprintf("ORD%03d", i), "2024-03-04 09:00:00",
				fmt.Sprintf("%d", 20+i), "5", "800", "3", "2",
			})
		}
	}

	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		t.Fatalf("LoadRecords: %v", df.Err)
	}
	return processor.EngineerFeatures(df, processor.FillZero)
}

func TestSelectFeatures(t *testing.T) {
	df := dataframe.LoadRecords([][]string{
		{"delivery_cost", "order_id", "distance_km", "weather"},
		{"100", "ORD1", "10", "rain"},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	got := SelectFeatures(df)
	want := []string{"distance_km", "delivery_cost"}
	if len(got) != len(want) {
		t.Fatalf("SelectFeatures = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SelectFeatures[%d] = %q, want %q (fixed priority order)", i, got[i], want[i])
		}
	}
}

func TestSelectFeaturesEmpty(t *testing.T) {
	df := dataframe.LoadRecords([][]string{
		{"order_id"},
		{"ORD1"},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	if got := SelectFeatures(df); len(got) != 0 {
		t.Errorf("SelectFeatures = %v, want empty", got)
	}
}

func TestTrainLoadPredictRoundTrip(t *testing.T) {
	df := trainingFrame(t, 60)
	p := NewPredictor(filepath.Join(t.TempDir(), "delay_model.gob"))

	result, err := p.Train(df)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if result.Accuracy < 0.5 {
		t.Errorf("Accuracy = %v, expected a separable toy dataset to beat chance", result.Accuracy)
	}
	if result.Rows != 60 {
		t.Errorf("Rows = %d, want 60", result.Rows)
	}

	m, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m == nil {
		t.Fatal("Load returned nil after Train")
	}

	row := df.Subset([]int{0})
	first, err := p.PredictOne(m, row)
	if err != nil {
		t.Fatalf("PredictOne: %v", err)
	}
	if first < 0 || first > 1 {
		t.Errorf("probability = %v, want within [0,1]", first)
	}

	// 同一模型对同一特征向量的预测是确定的
	for i := 0; i < 5; i++ {
		again, err := p.PredictOne(m, row)
		if err != nil {
			t.Fatalf("PredictOne repeat: %v", err)
		}
		if again != first {
			t.Fatalf("prediction drifted: %v != %v", again, first)
		}
	}
}

func TestTrainSingleClassFails(t *testing.T) {
	records := [][]string{
		{"order_id", "distance_km", "promised_delivery_days", "actual_delivery_days"},
	}
	for i := 0; i < 10; i++ {
		records = append(records, []string{
			fmt.Sprintf("ORD%d", i), "100", "3", "2", // 全部准时
		})
	}
	df := processor.EngineerFeatures(dataframe.LoadRecords(records,
		dataframe.DetectTypes(false), dataframe.DefaultType(series.String)), processor.FillZero)

	p := NewPredictor(filepath.Join(t.TempDir(), "delay_model.gob"))
	_, err := p.Train(df)
	if !errors.Is(err, ErrSingleClass) {
		t.Fatalf("err = %v, want ErrSingleClass", err)
	}
}

func TestTrainWithoutLabelColumn(t *testing.T) {
	df := dataframe.LoadRecords([][]string{
		{"order_id", "distance_km"},
		{"ORD1", "100"},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	p := NewPredictor(filepath.Join(t.TempDir(), "delay_model.gob"))
	_, err := p.Train(df)
	if err == nil || !strings.Contains(err.Error(), "delay_flag") {
		t.Fatalf("err = %v, want delay_flag requirement error", err)
	}
}

func TestLoadWithoutModelFile(t *testing.T) {
	p := NewPredictor(filepath.Join(t.TempDir(), "missing.gob"))
	m, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil model when no file has been persisted")
	}
}

func TestPredictOneRowCountGuard(t *testing.T) {
	df := trainingFrame(t, 60)
	p := NewPredictor(filepath.Join(t.TempDir(), "delay_model.gob"))
	if _, err := p.Train(df); err != nil {
		t.Fatalf("Train: %v", err)
	}
	m, err := p.Load()
	if err != nil || m == nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := p.PredictOne(m, df); err == nil {
		t.Error("expected error for multi-row input")
	}
	if _, err := p.PredictOne(nil, df.Subset([]int{0})); err == nil {
		t.Error("expected error for nil model")
	}
}
