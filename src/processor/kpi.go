// kpi.go
package processor

import (
	"encoding/json"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"

	"DeliveryOptimizer/src/utils"
)

// KPISummary 工程化数据表的汇总指标
// 浮点字段为NaN时表示未定义(对应列缺失或没有有效值)。
type KPISummary struct {
	TotalOrders     int     `json:"total_orders"`
	OnTimePct       float64 `json:"on_time_pct"`
	AvgDeliveryCost float64 `json:"avg_delivery_cost"`
	AvgDistanceKM   float64 `json:"avg_distance_km"`
}

// MarshalJSON 将NaN字段序列化为null
func (k KPISummary) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"total_orders":      k.TotalOrders,
		"on_time_pct":       nanToNil(k.OnTimePct),
		"avg_delivery_cost": nanToNil(k.AvgDeliveryCost),
		"avg_distance_km":   nanToNil(k.AvgDistanceKM),
	}
	return json.Marshal(out)
}

func nanToNil(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// ComputeKPIs 计算汇总指标
// 空表返回 {0, NaN, NaN, NaN}，不会出现除零错误。
func ComputeKPIs(df dataframe.DataFrame) KPISummary {
	out := KPISummary{
		OnTimePct:       math.NaN(),
		AvgDeliveryCost: math.NaN(),
		AvgDistanceKM:   math.NaN(),
	}
	if df.Err != nil || df.Nrow() == 0 {
		return out
	}

	out.TotalOrders = df.Nrow()

	if utils.HasColumn(df, ColDelayFlag) {
		if m := meanDefined(df.Col(ColDelayFlag)); !math.IsNaN(m) {
			out.OnTimePct = 100 * (1 - m)
		}
	}
	if utils.HasColumn(df, "delivery_cost") {
		out.AvgDeliveryCost = meanDefined(df.Col("delivery_cost"))
	}
	if utils.HasColumn(df, "distance_km") {
		out.AvgDistanceKM = meanDefined(df.Col("distance_km"))
	}

	return out
}

// DelayRateByWeekday 按下单星期几统计延误率，供报表使用
// 只统计delay_flag有定义的行；无可统计数据时返回空映射。
func DelayRateByWeekday(df dataframe.DataFrame) map[string]float64 {
	out := make(map[string]float64)
	if df.Err != nil || !utils.HasColumn(df, ColOrderWeekday) || !utils.HasColumn(df, ColDelayFlag) {
		return out
	}

	weekdays := df.Col(ColOrderWeekday).Records()
	flags := df.Col(ColDelayFlag).Float()

	sums := make(map[string]float64)
	counts := make(map[string]float64)
	for i, wd := range weekdays {
		if wd == "NaN" || wd == "" || math.IsNaN(flags[i]) {
			continue
		}
		sums[wd] += flags[i]
		counts[wd]++
	}
	for wd, n := range counts {
		out[wd] = sums[wd] / n
	}
	return out
}

// meanDefined 忽略NA后的均值；没有有效值时返回NaN
func meanDefined(s series.Series) float64 {
	defined := make([]float64, 0, s.Len())
	for _, v := range s.Float() {
		if !math.IsNaN(v) {
			defined = append(defined, v)
		}
	}
	if len(defined) == 0 {
		return math.NaN()
	}
	return stat.Mean(defined, nil)
}
