package coremodel

// RawSample 单个已校准的原始采样点（微伏）
type RawSample struct {
	TimestampMillis int64   `json:"timestampMillis"` // 采样时间戳（毫秒）
	Microvolts      float64 `json:"microvolts"`      // 校准后的电压值（µV）
}

// FrequencyBands 五个经典脑电频段的功率估计
// 每次分析整体覆盖更新，不做部分修改
type FrequencyBands struct {
	Delta float64 `json:"delta"` // 0.5-4 Hz
	Theta float64 `json:"theta"` // 4-8 Hz
	Alpha float64 `json:"alpha"` // 8-14 Hz
	Beta  float64 `json:"beta"`  // 14-30 Hz
	Gamma float64 `json:"gamma"` // 30-40 Hz
}

// AnalysisMetrics 由频段功率派生的认知状态指标
type AnalysisMetrics struct {
	Attention  float64 `json:"attention"`    // 专注度 [0,1]
	Relaxation float64 `json:"relaxation"`   // 放松度 [0,1]
	Meditating bool    `json:"isMeditating"` // 放松度严格大于阈值时为 true，不保持粘滞
}

// Snapshot 对外可见的唯一状态单元
// 生产侧整体替换发布，消费侧只读
type Snapshot struct {
	Raw     RawSample       `json:"raw"`
	Bands   FrequencyBands  `json:"bands"`
	Metrics AnalysisMetrics `json:"metrics"`
}
