// report.go
package datapush

import (
	"crypto/tls"
	"fmt"
	"math"
	"net/smtp"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/jordan-wright/email"
	"github.com/xuri/excelize/v2"

	"DeliveryOptimizer/src/config"
	"DeliveryOptimizer/src/processor"
)

// SaveReport 将工程化数据表和KPI汇总写入xlsx报表
// 覆盖已有文件。
func SaveReport(df dataframe.DataFrame, kpis processor.KPISummary, byWeekday map[string]float64, filePath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeDataSheet(f, df); err != nil {
		return err
	}
	if err := writeKPISheet(f, kpis, byWeekday); err != nil {
		return err
	}

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel报表失败: %w", err)
	}
	return nil
}

func writeDataSheet(f *excelize.File, df dataframe.DataFrame) error {
	sheetName := "Orders"
	f.SetSheetName("Sheet1", sheetName)

	if df.Err != nil {
		return nil // 空管道，只输出KPI页
	}

	// 写入列名
	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, name)
	}

	// 写入数据
	for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
		for colIdx, colName := range colNames {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			val := df.Col(colName).Val(rowIdx)
			f.SetCellValue(sheetName, cell, val)
		}
	}
	return nil
}

func writeKPISheet(f *excelize.File, kpis processor.KPISummary, byWeekday map[string]float64) error {
	sheetName := "KPIs"
	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("创建KPI工作表失败: %w", err)
	}

	rows := [][]interface{}{
		{"total_orders", kpis.TotalOrders},
		{"on_time_pct", kpiCell(kpis.OnTimePct)},
		{"avg_delivery_cost", kpiCell(kpis.AvgDeliveryCost)},
		{"avg_distance_km", kpiCell(kpis.AvgDistanceKM)},
	}

	// 各星期几的延误率按字母序追加，保证输出稳定
	weekdays := make([]string, 0, len(byWeekday))
	for wd := range byWeekday {
		weekdays = append(weekdays, wd)
	}
	sort.Strings(weekdays)
	for _, wd := range weekdays {
		rows = append(rows, []interface{}{"delay_rate_" + strings.ToLower(wd), byWeekday[wd]})
	}

	for i, row := range rows {
		keyCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valCell, _ := excelize.CoordinatesToCellName(2, i+1)
		f.SetCellValue(sheetName, keyCell, row[0])
		f.SetCellValue(sheetName, valCell, row[1])
	}
	return nil
}

// kpiCell 未定义的指标在报表里显示为N/A
func kpiCell(v float64) interface{} {
	if math.IsNaN(v) {
		return "N/A"
	}
	return v
}

// SendReport 将xlsx报表作为附件发送
func SendReport(c *config.Config, reportPath string) error {
	from := c.SendEmail.Username

	e := email.NewEmail()
	e.From = fmt.Sprintf("Delivery Optimizer <%s>", from)
	e.To = []string{c.SendEmail.To}
	e.Subject = c.SendEmail.Subject
	e.Text = []byte("最新物流KPI报表见附件。")

	if _, err := e.AttachFile(reportPath); err != nil {
		return fmt.Errorf("附件添加失败: %w", err)
	}

	// 确保服务器地址包含端口
	smtpAddr := c.SendEmail.Server
	if !strings.Contains(smtpAddr, ":") {
		smtpAddr += ":465" // 默认 SSL 端口
	}
	host := strings.Split(smtpAddr, ":")[0]

	if err := e.SendWithTLS(
		smtpAddr,
		smtp.PlainAuth("", from, c.SendEmail.Password, host),
		&tls.Config{ServerName: host},
	); err != nil {
		return fmt.Errorf("邮件发送失败 (server: %s): %w", smtpAddr, err)
	}
	return nil
}
