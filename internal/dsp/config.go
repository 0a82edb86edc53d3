package dsp

import (
	"fmt"
	"math"

	"github.com/calmwave/eeg-server/internal/coremodel"
)

// BandRange 单个频段的频率范围（Hz，闭区间）
type BandRange struct {
	Low  float64
	High float64
}

// BandRanges 五个经典脑电频段的频率范围
type BandRanges struct {
	Delta BandRange
	Theta BandRange
	Alpha BandRange
	Beta  BandRange
	Gamma BandRange
}

// Config 频谱分析引擎参数
type Config struct {
	SampleRate          float64    // 采样率（Hz）
	WindowSize          int        // 分析窗口长度，必须是2的幂
	Overlap             int        // 截断后保留的尾部采样数（窗口重叠）
	Epsilon             float64    // 比值计算防除零项
	Damping             float64    // 指标缩放阻尼系数
	MeditationThreshold float64    // 冥想判定阈值（放松度严格大于时成立）
	Bands               BandRanges // 频段划分
}

// DefaultConfig 默认分析参数
func DefaultConfig() Config {
	return Config{
		SampleRate:          256,
		WindowSize:          512,
		Overlap:             256,
		Epsilon:             0.001,
		Damping:             0.8,
		MeditationThreshold: 0.85,
		Bands: BandRanges{
			Delta: BandRange{0.5, 4},
			Theta: BandRange{4, 8},
			Alpha: BandRange{8, 14},
			Beta:  BandRange{14, 30},
			Gamma: BandRange{30, 40},
		},
	}
}

// Validate 校验参数
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: %v", c.SampleRate)
	}
	if c.WindowSize <= 0 || c.WindowSize&(c.WindowSize-1) != 0 {
		return fmt.Errorf("window size must be a power of two: %d", c.WindowSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.WindowSize {
		return fmt.Errorf("overlap must be in [0, windowSize): %d", c.Overlap)
	}
	return nil
}

// DeriveMetrics 由频段功率派生认知状态指标
// relaxation = damping·alpha/(beta+theta+ε)，attention = damping·beta/(alpha+theta+ε)，
// 均钳制到 [0,1]；meditating 为放松度严格大于阈值（等于阈值不成立）
func (c Config) DeriveMetrics(b coremodel.FrequencyBands) coremodel.AnalysisMetrics {
	relaxation := clamp01(c.Damping * b.Alpha / (b.Beta + b.Theta + c.Epsilon))
	attention := clamp01(c.Damping * b.Beta / (b.Alpha + b.Theta + c.Epsilon))
	return coremodel.AnalysisMetrics{
		Attention:  attention,
		Relaxation: relaxation,
		Meditating: relaxation > c.MeditationThreshold,
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
