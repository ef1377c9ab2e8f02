// loader.go
package file

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"

	"DeliveryOptimizer/src/utils"
)

// 逻辑数据集名称，贯穿整个管道使用
const (
	DatasetOrders    = "orders"
	DatasetDelivery  = "delivery"
	DatasetRoutes    = "routes"
	DatasetFleet     = "fleet"
	DatasetInventory = "inventory"
	DatasetFeedback  = "feedback"
	DatasetCost      = "cost"
)

// DatasetNames 固定的加载顺序
var DatasetNames = []string{
	DatasetOrders,
	DatasetDelivery,
	DatasetRoutes,
	DatasetFleet,
	DatasetInventory,
	DatasetFeedback,
	DatasetCost,
}

// datasetFiles 逻辑数据集到文件名的映射
var datasetFiles = map[string]string{
	DatasetOrders:    "orders.csv",
	DatasetDelivery:  "delivery_performance.csv",
	DatasetRoutes:    "routes_distance.csv",
	DatasetFleet:     "vehicle_fleet.csv",
	DatasetInventory: "warehouse_inventory.csv",
	DatasetFeedback:  "customer_feedback.csv",
	DatasetCost:      "cost_breakdown.csv",
}

// datasetDateColumns 每个数据集声明的日期列
var datasetDateColumns = map[string][]string{
	DatasetOrders:    {"order_date"},
	DatasetDelivery:  {"promised_time", "actual_delivery_time"},
	DatasetInventory: {"last_restocked_date"},
	DatasetFeedback:  {"feedback_date"},
}

// Datasets 逻辑数据集名称到表的映射，nil表示文件缺失
type Datasets map[string]*dataframe.DataFrame

// Loader 从数据目录读取固定的一组CSV数据集
type Loader struct {
	dataDir string
}

func NewLoader(dataDir string) *Loader {
	return &Loader{dataDir: dataDir}
}

// FileName 返回逻辑数据集对应的文件名，未知数据集返回空串
func FileName(dataset string) string {
	return datasetFiles[dataset]
}

// Load 读取全部7个数据集
// 文件缺失 → 该数据集为nil；文件存在但无法解析 → 返回带文件名的错误
func (l *Loader) Load() (Datasets, error) {
	out := make(Datasets, len(DatasetNames))
	for _, name := range DatasetNames {
		df, err := l.loadOne(name)
		if err != nil {
			return nil, err
		}
		out[name] = df
	}
	return out, nil
}

func (l *Loader) loadOne(name string) (*dataframe.DataFrame, error) {
	csvPath := filepath.Join(l.dataDir, datasetFiles[name])

	data, err := os.ReadFile(csvPath)
	if os.IsNotExist(err) {
		// CSV缺失时回退到同名xlsx导出
		return l.loadXLSXFallback(csvPath, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", csvPath, err)
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		// 严格解析失败后放宽引号规则重试，与原始数据源的降级读取一致
		retry := dataframe.ReadCSV(bytes.NewReader(data),
			dataframe.HasHeader(true),
			dataframe.DefaultType(series.String),
			dataframe.WithLazyQuotes(true),
		)
		if retry.Err != nil {
			return nil, fmt.Errorf("failed to read CSV %s: %w", csvPath, df.Err)
		}
		df = retry
	}

	normalized := normalizeDateColumns(df, datasetDateColumns[name])
	return &normalized, nil
}

// loadXLSXFallback 读取与CSV同名的.xlsx文件，首个工作表，第一行为表头
func (l *Loader) loadXLSXFallback(csvPath, name string) (*dataframe.DataFrame, error) {
	xlsxPath := strings.TrimSuffix(csvPath, ".csv") + ".xlsx"
	if _, err := os.Stat(xlsxPath); err != nil {
		return nil, nil // 两种格式都不存在，数据集缺失
	}

	xlFile, err := xlsx.OpenFile(xlsxPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx %s: %w", xlsxPath, err)
	}
	if len(xlFile.Sheets) == 0 {
		return nil, fmt.Errorf("xlsx %s has no sheets", xlsxPath)
	}

	df := convertSheetToDataFrame(xlFile.Sheets[0])
	normalized := normalizeDateColumns(df, datasetDateColumns[name])
	return &normalized, nil
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet) dataframe.DataFrame {
	if len(sheet.Rows) == 0 {
		return dataframe.New()
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, cell.Value)
	}

	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-1)
	}

	for _, row := range sheet.Rows[1:] {
		for i := range headers {
			val := ""
			if i < len(row.Cells) {
				val = row.Cells[i].Value
			}
			columns[i] = append(columns[i], val)
		}
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	return dataframe.New(seriesList...)
}

// timeFormats 支持的原始时间格式；HasTime为false的格式没有时间部分
var timeFormats = []struct {
	Layout  string
	HasTime bool
}{
	{"2006-01-02 15:04:05", true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02 15:04", true},
	{"2006/01/02 15:04:05", true},
	{"01/02/2006 15:04:05", true},
	{"2006-01-02", false},
	{"2006/01/02", false},
	{"01/02/2006", false},
}

// ParseAnyTime 尝试全部支持的时间格式
// 返回解析结果以及原始值是否带有时间部分
func ParseAnyTime(s string) (t time.Time, hasTime bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	for _, f := range timeFormats {
		if t, err := time.Parse(f.Layout, s); err == nil {
			return t, f.HasTime, true
		}
	}
	return time.Time{}, false, false
}

// normalizeDateColumns 将声明的日期列标准化
// 带时间部分的值统一为utils.TimeLayout，纯日期保留为2006-01-02，
// 无法解析的单元格变为NA而不是报错
func normalizeDateColumns(df dataframe.DataFrame, dateCols []string) dataframe.DataFrame {
	for _, col := range dateCols {
		if !utils.HasColumn(df, col) {
			continue
		}
		records := df.Col(col).Records()
		normalized := make([]string, len(records))
		for i, rec := range records {
			t, hasTime, ok := ParseAnyTime(rec)
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
