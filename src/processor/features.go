// features.go
package processor

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"DeliveryOptimizer/src/datasource/file"
	"DeliveryOptimizer/src/utils"
)

// FillPolicy 控制数值列解析失败时的处理方式
type FillPolicy string

const (
	FillZero      FillPolicy = "zero"      // 解析失败填0(沿用原始数据源的策略)
	FillDropRow   FillPolicy = "drop_row"  // 丢弃包含坏数值的整行
	FillPropagate FillPolicy = "propagate" // 保留为NA
)

// 工程化后使用的规范列名
const (
	ColOrderDate    = "order_date"
	ColPromisedTime = "promised_time"
	ColActualTime   = "actual_delivery_time"
	ColPromisedDays = "promised_days"
	ColActualDays   = "actual_days"
	ColOrderWeekday = "order_weekday"
	ColOrderHour    = "order_hour"
	ColGapMinutes   = "eta_gap_minutes"
	ColGapDays      = "eta_gap_days"
	ColDelayFlag    = "delay_flag"
)

// canonicalRenames 将两种数据源命名规范折叠为一个规范模式
// 这里是唯一允许按原始列名分支的地方
var canonicalRenames = map[string]string{
	"promised_delivery_days": ColPromisedDays,
	"actual_delivery_days":   ColActualDays,
	"delivery_cost_inr":      "delivery_cost",
}

// numericColumns 需要强制转为数值的列
var numericColumns = []string{"distance_km", "fuel_consumption", "traffic_delay", "delivery_cost"}

// dateColumns 工程化阶段需要解析的时间列
var dateColumns = []string{ColOrderDate, ColPromisedTime, ColActualTime}

// NormalizeColumns 列名规范化：小写并去除首尾空白，幂等
func NormalizeColumns(df dataframe.DataFrame) dataframe.DataFrame {
	if df.Err != nil {
		return df
	}

	names := df.Names()
	changed := false
	for i, n := range names {
		nn := strings.ToLower(strings.TrimSpace(n))
		if nn != n {
			names[i] = nn
			changed = true
		}
	}
	if !changed {
		return df
	}

	out := df.Copy()
	out.SetNames(names...)
	return out
}

// EngineerFeatures 在合并表上派生延误特征
// 输入表不变，输出对相同输入是确定的。
func EngineerFeatures(df dataframe.DataFrame, policy FillPolicy) dataframe.DataFrame {
	if df.Err != nil {
		return df
	}

	df = NormalizeColumns(df)
	for old, canonical := range canonicalRenames {
		if utils.HasColumn(df, old) && !utils.HasColumn(df, canonical) {
			df = df.Rename(canonical, old)
		}
	}

	// 空表只做列名规范化，派生列无意义
	if df.Nrow() == 0 {
		return df
	}

	df = normalizeDates(df)
	df = deriveOrderTime(df)
	df = deriveDelay(df)
	df = coerceNumerics(df, policy)

	return df
}

// normalizeDates 重新规范时间列；加载器已经处理过的列保持不变(幂等)
func normalizeDates(df dataframe.DataFrame) dataframe.DataFrame {
	for _, col := range dateColumns {
		if !utils.HasColumn(df, col) {
			continue
		}
		records := df.Col(col).Records()
		normalized := make([]string, len(records))
		for i, rec := range records {
			t, hasTime, ok := file.ParseAnyTime(rec)
			if !ok {
				normalized[i] = "NaN"
				continue
			}
			if hasTime {
				normalized[i] = t.Format(utils.TimeLayout)
			} else {
				normalized[i] = t.Format("2006-01-02")
			}
		}
		df = df.Mutate(series.New(normalized, series.String, col))
	}
	return df
}

// deriveOrderTime 从order_date派生order_weekday和order_hour
// 没有时间部分的日期得到NA的order_hour
func deriveOrderTime(df dataframe.DataFrame) dataframe.DataFrame {
	if !utils.HasColumn(df, ColOrderDate) {
		return df
	}

	records := df.Col(ColOrderDate).Records()
	weekdays := make([]string, len(records))
	hours := make([]string, len(records))
	for i, rec := range records {
		t, hasTime, ok := file.ParseAnyTime(rec)
		if !ok {
			weekdays[i] = "NaN"
			hours[i] = "NaN"
			continue
		}
		weekdays[i] = t.Weekday().String()
		if hasTime {
			hours[i] = strconv.Itoa(t.Hour())
		} else {
			hours[i] = "NaN"
		}
	}

	df = df.Mutate(series.New(weekdays, series.String, ColOrderWeekday))
	df = df.Mutate(series.New(hours, series.Int, ColOrderHour))
	return df
}

// deriveDelay 按可用模式计算延误间隔和delay_flag
// 时间戳模式 → eta_gap_minutes；天数模式 → eta_gap_days；
// 两种模式的输入都不在时不生成delay_flag列。
func deriveDelay(df dataframe.DataFrame) dataframe.DataFrame {
	switch {
	case utils.HasColumn(df, ColPromisedTime) && utils.HasColumn(df, ColActualTime):
		promised := df.Col(ColPromisedTime).Records()
		actual := df.Col(ColActualTime).Records()
		gaps := make([]float64, len(promised))
		for i := range promised {
			pt, _, okP := file.ParseAnyTime(promised[i])
			at, _, okA := file.ParseAnyTime(actual[i])
			if !okP || !okA {
				gaps[i] = math.NaN()
				continue
			}
			gaps[i] = at.Sub(pt).Minutes()
		}
		df = df.Mutate(series.New(gaps, series.Float, ColGapMinutes))
		df = df.Mutate(delayFlagSeries(gaps))

	case utils.HasColumn(df, ColPromisedDays) && utils.HasColumn(df, ColActualDays):
		promised := df.Col(ColPromisedDays).Records()
		actual := df.Col(ColActualDays).Records()
		gaps := make([]float64, len(promised))
		for i := range promised {
			p, errP := strconv.ParseFloat(strings.TrimSpace(promised[i]), 64)
			a, errA := strconv.ParseFloat(strings.TrimSpace(actual[i]), 64)
			if errP != nil || errA != nil {
				gaps[i] = math.NaN()
				continue
			}
			gaps[i] = a - p
		}
		df = df.Mutate(series.New(gaps, series.Float, ColGapDays))
		df = df.Mutate(delayFlagSeries(gaps))
	}
	return df
}

// delayFlagSeries 间隔严格大于0记1，否则记0，间隔未定义记NA
func delayFlagSeries(gaps []float64) series.Series {
	flags := make([]string, len(gaps))
	for i, g := range gaps {
		switch {
		case math.IsNaN(g):
			flags[i] = "NaN"
		case g > 0:
			flags[i] = "1"
		default:
			flags[i] = "0"
		}
	}
	return series.New(flags, series.Int, ColDelayFlag)
}

// coerceNumerics 按FillPolicy将已知数值列强制转为浮点
func coerceNumerics(df dataframe.DataFrame, policy FillPolicy) dataframe.DataFrame {
	badRows := make(map[int]bool)

	for _, col := range numericColumns {
		if !utils.HasColumn(df, col) {
			continue
		}
		records := df.Col(col).Records()
		values := make([]float64, len(records))
		for i, rec := range records {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec), 64)
			if err != nil || math.IsNaN(v) {
				switch policy {
				case FillPropagate:
					values[i] = math.NaN()
				case FillDropRow:
					values[i] = math.NaN()
					badRows[i] = true
				default: // FillZero
					values[i] = 0
				}
				continue
			}
			values[i] = v
		}
		df = df.Mutate(series.New(values, series.Float, col))
	}

	if policy == FillDropRow && len(badRows) > 0 {
		keep := make([]int, 0, df.Nrow()-len(badRows))
		for i := 0; i < df.Nrow(); i++ {
			if !badRows[i] {
				keep = append(keep, i)
			}
		}
		df = df.Subset(keep)
	}

	return df
}
