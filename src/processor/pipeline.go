// pipeline.go
package processor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"DeliveryOptimizer/src/datasource/file"
	"DeliveryOptimizer/src/utils"
)

// ErrOrderNotFound 工程化数据表中不存在给定的订单号
var ErrOrderNotFound = errors.New("order not found")

// Pipeline 串起加载、合并、特征工程和KPI计算
// 工程化数据表保存在内存中，供HTTP端点和定时任务并发读取。
type Pipeline struct {
	loader *file.Loader
	policy FillPolicy

	mu          sync.RWMutex
	engineered  dataframe.DataFrame
	kpis        KPISummary
	refreshedAt time.Time
}

func NewPipeline(loader *file.Loader, policy FillPolicy) *Pipeline {
	return &Pipeline{
		loader: loader,
		policy: policy,
		kpis:   ComputeKPIs(dataframe.DataFrame{}),
	}
}

// Refresh 重新运行整个数据管道
func (p *Pipeline) Refresh() (KPISummary, error) {
	datasets, err := p.loader.Load()
	if err != nil {
		return KPISummary{}, fmt.Errorf("load datasets: %w", err)
	}

	merged := Merge(datasets)
	engineered := EngineerFeatures(merged, p.policy)
	kpis := ComputeKPIs(engineered)

	p.mu.Lock()
	p.engineered = engineered
	p.kpis = kpis
	p.refreshedAt = time.Now()
	p.mu.Unlock()

	return kpis, nil
}

// Engineered 返回当前的工程化数据表
func (p *Pipeline) Engineered() dataframe.DataFrame {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.engineered
}

// KPIs 返回最近一次刷新计算的指标
func (p *Pipeline) KPIs() KPISummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.kpis
}

// RefreshedAt 返回最近一次成功刷新的时间，零值表示尚未刷新
func (p *Pipeline) RefreshedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.refreshedAt
}

// FindOrder 按订单号查找工程化记录
// 没有匹配返回ErrOrderNotFound；订单号应当唯一，多个匹配是数据错误。
func (p *Pipeline) FindOrder(orderID string) (dataframe.DataFrame, error) {
	df := p.Engineered()
	if df.Err != nil || df.Nrow() == 0 || !utils.HasColumn(df, OrderIDColumn) {
		return dataframe.DataFrame{}, fmt.Errorf("order %q: %w", orderID, ErrOrderNotFound)
	}

	row := df.Filter(dataframe.F{
		Colname:    OrderIDColumn,
		Comparator: series.Eq,
		Comparando: orderID,
	})
	if row.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("filter order %q: %w", orderID, row.Err)
	}

	switch row.Nrow() {
	case 0:
		return dataframe.DataFrame{}, fmt.Errorf("order %q: %w", orderID, ErrOrderNotFound)
	case 1:
		return row, nil
	default:
		return dataframe.DataFrame{}, fmt.Errorf("order %q matches %d rows, identifier is expected to be unique", orderID, row.Nrow())
	}
}
