// advisor.go
package processor

import (
	"math"
	"strings"

	"github.com/go-gota/gota/dataframe"

	"DeliveryOptimizer/src/utils"
)

// NoActionMessage 没有任何规则命中时的唯一输出
const NoActionMessage = "no action required"

// Advise 对单行工程化记录应用固定顺序的补救规则
// 每条规则独立判断，可同时命中多条；引用的列缺失时跳过该规则。
// 返回的列表永远非空。
func Advise(row dataframe.DataFrame) []string {
	var suggestions []string

	distance, okDist := floatAt(row, "distance_km")
	traffic, okTraf := floatAt(row, "traffic_delay")
	if okDist && okTraf && distance > 250 && traffic > 60 {
		suggestions = append(suggestions,
			"High distance with heavy traffic delay: consider reassigning carrier or route")
	}

	priority, okPrio := stringAt(row, "priority")
	cost, okCost := floatAt(row, "delivery_cost")
	if okPrio && okCost && strings.EqualFold(priority, "low") && cost > 5000 {
		suggestions = append(suggestions,
			"Low priority order with high delivery cost: consolidate with other low-priority shipments")
	}

	gapDays, okGap := floatAt(row, ColGapDays)
	if okGap && gapDays > 3 {
		suggestions = append(suggestions,
			"Delivery overdue by more than 3 days: notify the customer proactively")
	}

	if len(suggestions) == 0 {
		return []string{NoActionMessage}
	}
	return suggestions
}

// floatAt 读取单行表的数值单元格；列缺失或值无定义时ok为false
func floatAt(row dataframe.DataFrame, col string) (float64, bool) {
	if row.Err != nil || row.Nrow() == 0 || !utils.HasColumn(row, col) {
		return 0, false
	}
	v := row.Col(col).Float()[0]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// stringAt 读取单行表的字符串单元格
func stringAt(row dataframe.DataFrame, col string) (string, bool) {
	if row.Err != nil || row.Nrow() == 0 || !utils.HasColumn(row, col) {
		return "", false
	}
	e := row.Col(col).Elem(0)
	if e.IsNA() {
		return "", false
	}
	return e.String(), true
}
