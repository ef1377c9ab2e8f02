// predictor.go
package model

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/go-gota/gota/dataframe"
	randomforest "github.com/malaschitz/randomForest"

	"DeliveryOptimizer/src/processor"
	"DeliveryOptimizer/src/utils"
)

// 训练超参数，与既有模型保持一致
const (
	numTrees     = 200
	testFraction = 0.2
	splitSeed    = 42
)

// FeatureCandidates 候选特征列及其固定优先顺序
var FeatureCandidates = []string{
	"distance_km",
	"fuel_consumption",
	"traffic_delay",
	"order_hour",
	"delivery_cost",
}

// ErrSingleClass 标签列只有一个类别，无法分层切分训练
var ErrSingleClass = errors.New("delay_flag contains fewer than 2 classes; training needs both delayed and on-time orders")

// Model 持久化的分类器及其特征顺序
type Model struct {
	Features []string
	Forest   randomforest.Forest
}

// TrainResult 一次训练的摘要
type TrainResult struct {
	Accuracy float64  `json:"accuracy"`
	Rows     int      `json:"rows"`
	Features []string `json:"features"`
}

// Predictor 训练、持久化并加载延误分类器
// 模型文件每次训练都会被覆盖；Load每次都从磁盘读取，
// 保证预测使用的总是最近持久化的模型。
type Predictor struct {
	modelPath string
}

func NewPredictor(modelPath string) *Predictor {
	return &Predictor{modelPath: modelPath}
}

// SelectFeatures 返回候选列表中实际存在的列，保持固定顺序
func SelectFeatures(df dataframe.DataFrame) []string {
	var out []string
	for _, col := range FeatureCandidates {
		if utils.HasColumn(df, col) {
			out = append(out, col)
		}
	}
	return out
}

// Train 在工程化数据表上训练延误分类器并持久化
// 标签NA按0处理，特征NA按0填充(沿用原始数据源的策略)。
func (p *Predictor) Train(df dataframe.DataFrame) (TrainResult, error) {
	if df.Err != nil {
		return TrainResult{}, fmt.Errorf("invalid input table: %w", df.Err)
	}
	if !utils.HasColumn(df, processor.ColDelayFlag) {
		return TrainResult{}, fmt.Errorf("training requires a %s column", processor.ColDelayFlag)
	}

	features := SelectFeatures(df)
	if len(features) == 0 {
		return TrainResult{}, fmt.Errorf("no candidate feature columns present in the table")
	}

	x := featureMatrix(df, features)
	y := labels(df)

	classes := map[int]int{}
	for _, label := range y {
		classes[label]++
	}
	if len(classes) < 2 {
		return TrainResult{}, ErrSingleClass
	}

	trainIdx, testIdx, err := stratifiedSplit(y, testFraction, splitSeed)
	if err != nil {
		return TrainResult{}, err
	}

	trainX := make([][]float64, 0, len(trainIdx))
	trainY := make([]int, 0, len(trainIdx))
	for _, i := range trainIdx {
		trainX = append(trainX, x[i])
		trainY = append(trainY, y[i])
	}

	forest := randomforest.Forest{}
	forest.Data = randomforest.ForestData{X: trainX, Class: trainY}
	forest.Train(numTrees)

	m := &Model{Features: features, Forest: forest}

	correct := 0
	for _, i := range testIdx {
		prob := m.voteDelayed(x[i])
		predicted := 0
		if prob > 0.5 {
			predicted = 1
		}
		if predicted == y[i] {
			correct++
		}
	}

	if err := p.save(m); err != nil {
		return TrainResult{}, err
	}

	return TrainResult{
		Accuracy: float64(correct) / float64(len(testIdx)),
		Rows:     df.Nrow(),
		Features: features,
	}, nil
}

// Load 从磁盘读取持久化模型；文件不存在返回(nil, nil)
func (p *Predictor) Load() (*Model, error) {
	f, err := os.Open(p.modelPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", p.modelPath, err)
	}
	defer f.Close()

	var m Model
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", p.modelPath, err)
	}
	return &m, nil
}

// PredictOne 对单行记录预测延误概率
// 输入必须恰好一行；缺失的特征列和NA特征值按0填充。
func (p *Predictor) PredictOne(m *Model, row dataframe.DataFrame) (float64, error) {
	if m == nil {
		return 0, fmt.Errorf("no trained model available")
	}
	if row.Err != nil {
		return 0, fmt.Errorf("invalid input row: %w", row.Err)
	}
	if row.Nrow() != 1 {
		return 0, fmt.Errorf("predict expects exactly 1 row, got %d", row.Nrow())
	}

	vec := make([]float64, len(m.Features))
	for i, col := range m.Features {
		if !utils.HasColumn(row, col) {
			continue
		}
		if v := row.Col(col).Float()[0]; !math.IsNaN(v) {
			vec[i] = v
		}
	}

	return m.voteDelayed(vec), nil
}

// voteDelayed 返回正类(延误)的投票概率
func (m *Model) voteDelayed(vec []float64) float64 {
	votes := m.Forest.Vote(vec)
	if len(votes) < 2 {
		return 0
	}
	return votes[1]
}

func (p *Predictor) save(m *Model) error {
	f, err := os.Create(p.modelPath)
	if err != nil {
		return fmt.Errorf("create model %s: %w", p.modelPath, err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("encode model %s: %w", p.modelPath, err)
	}
	return nil
}

// featureMatrix 按给定特征顺序构建特征矩阵，NA填0
func featureMatrix(df dataframe.DataFrame, features []string) [][]float64 {
	cols := make([][]float64, len(features))
	for j, col := range features {
		cols[j] = df.Col(col).Float()
	}

	x := make([][]float64, df.Nrow())
	for i := range x {
		row := make([]float64, len(features))
		for j := range features {
			if v := cols[j][i]; !math.IsNaN(v) {
				row[j] = v
			}
		}
		x[i] = row
	}
	return x
}

// labels 读取delay_flag标签，NA按0处理
func labels(df dataframe.DataFrame) []int {
	flags := df.Col(processor.ColDelayFlag).Float()
	y := make([]int, len(flags))
	for i, f := range flags {
		if !math.IsNaN(f) && f > 0 {
			y[i] = 1
		}
	}
	return y
}

// stratifiedSplit 按标签分层的确定性训练/测试切分
func stratifiedSplit(y []int, fraction float64, seed int64) (trainIdx, testIdx []int, err error) {
	byClass := map[int][]int{}
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}

	rng := rand.New(rand.NewSource(seed))
	// 遍历顺序固定，保证切分可复现
	for _, label := range []int{0, 1} {
		idx := byClass[label]
		if len(idx) < 2 {
			return nil, nil, fmt.Errorf("class %d has only %d sample(s); need at least 2 per class for a stratified split", label, len(idx))
		}
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })

		nTest := int(float64(len(idx)) * fraction)
		if nTest < 1 {
			nTest = 1
		}
		testIdx = append(testIdx, idx[:nTest]...)
		trainIdx = append(trainIdx, idx[nTest:]...)
	}
	return trainIdx, testIdx, nil
}
