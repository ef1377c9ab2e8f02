// merge.go
package processor

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"DeliveryOptimizer/src/datasource/file"
	"DeliveryOptimizer/src/utils"
)

// OrderIDColumn 连接订单各数据集的主键列
const OrderIDColumn = "order_id"

// joinDatasets 参与合并的数据集及其固定顺序
var joinDatasets = []string{
	file.DatasetDelivery,
	file.DatasetRoutes,
	file.DatasetCost,
}

// Merge 以orders为基表，按order_id左连接delivery、routes、cost
// 缺失的数据集或没有主键列的数据集被静默跳过。
// 列名在连接前统一规范化(小写+去空白)，因此 "Order_ID" 风格的数据源同样可以连接。
// 与基表冲突的非主键列在连接前重命名为 <列名>_<数据集名>，避免静默遮蔽。
func Merge(datasets file.Datasets) dataframe.DataFrame {
	var base dataframe.DataFrame
	if orders := datasets[file.DatasetOrders]; orders != nil {
		base = NormalizeColumns(*orders)
	} else {
		base = dataframe.New() // 空基表，后续连接全部跳过
	}

	for _, name := range joinDatasets {
		ds := datasets[name]
		if ds == nil {
			continue
		}

		joined := NormalizeColumns(*ds)
		if !utils.HasColumn(joined, OrderIDColumn) || !utils.HasColumn(base, OrderIDColumn) {
			continue
		}

		for _, col := range joined.Names() {
			if col == OrderIDColumn {
				continue
			}
			if utils.Contains(base.Names(), col) {
				joined = joined.Rename(freeColumnName(col+"_"+name, base, joined), col)
			}
		}

		base = base.LeftJoin(joined, OrderIDColumn)
	}

	return restoreNA(base)
}

// freeColumnName 在候选名也被占用时追加序号(<列名>_<数据集名>_2、_3…)
func freeColumnName(candidate string, base, joined dataframe.DataFrame) string {
	taken := func(n string) bool {
		return utils.Contains(base.Names(), n) || utils.Contains(joined.Names(), n)
	}
	if !taken(candidate) {
		return candidate
	}
	for i := 2; ; i++ {
		next := fmt.Sprintf("%s_%d", candidate, i)
		if !taken(next) {
			return next
		}
	}
}

// restoreNA 恢复字符串列的NA编码
// gota的链式LeftJoin会把上一次连接产生的NA物化为字面"NaN"字符串(IsNA为false)，
// 这里按Records重建字符串列，使未匹配行重新成为真正的NA。
// 数值列不受影响："NaN"在Int/Float列里本身就解析为NA。
func restoreNA(df dataframe.DataFrame) dataframe.DataFrame {
	if df.Err != nil || df.Nrow() == 0 {
		return df
	}
	types := df.Types()
	for i, name := range df.Names() {
		if types[i] != series.String {
			continue
		}
		records := df.Col(name).Records()
		if !utils.Contains(records, "NaN") {
			continue
		}
		df = df.Mutate(series.New(records, series.String, name))
	}
	return df
}
