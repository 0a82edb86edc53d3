package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"

	"github.com/calmwave/eeg-server/internal/coremodel"
)

// Engine 滑动窗口频谱分析引擎
// 采样窗口由引擎独占持有；窗口满后每次追加都会在最近 WindowSize
// 个采样上重算频段功率与指标
type Engine struct {
	cfg    Config
	window []float64

	lastBands   coremodel.FrequencyBands
	lastMetrics coremodel.AnalysisMetrics
}

// New 创建分析引擎
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dsp config: %w", err)
	}
	return &Engine{
		cfg:    cfg,
		window: make([]float64, 0, cfg.WindowSize+cfg.Overlap),
	}, nil
}

// Append 追加校准后的采样值
// 窗口达到分析长度时执行一次分析并返回 analyzed=true；
// 分析后若窗口超过保留上限，从头部截断，仅保留 Overlap 个尾部采样，
// 使下一个窗口以新数据为主而不是停留在旧数据上
func (e *Engine) Append(samples ...float64) (coremodel.FrequencyBands, coremodel.AnalysisMetrics, bool) {
	e.window = append(e.window, samples...)
	if len(e.window) < e.cfg.WindowSize {
		return e.lastBands, e.lastMetrics, false
	}

	segment := e.window[len(e.window)-e.cfg.WindowSize:]
	e.lastBands = e.analyze(segment)
	e.lastMetrics = e.cfg.DeriveMetrics(e.lastBands)

	if len(e.window) > e.cfg.WindowSize+e.cfg.Overlap {
		tail := e.window[len(e.window)-e.cfg.Overlap:]
		e.window = append(e.window[:0], tail...)
	}
	return e.lastBands, e.lastMetrics, true
}

// Last 最近一次完成的分析结果
func (e *Engine) Last() (coremodel.FrequencyBands, coremodel.AnalysisMetrics) {
	return e.lastBands, e.lastMetrics
}

// WindowLen 当前窗口内的采样数（用于测试与诊断）
func (e *Engine) WindowLen() int {
	return len(e.window)
}

// Reset 清空窗口与分析结果（切换数据源或停止会话时调用）
func (e *Engine) Reset() {
	e.window = e.window[:0]
	e.lastBands = coremodel.FrequencyBands{}
	e.lastMetrics = coremodel.AnalysisMetrics{}
}

// analyze 去趋势 → 加汉宁窗 → FFT → 频段聚合
func (e *Engine) analyze(segment []float64) coremodel.FrequencyBands {
	n := e.cfg.WindowSize
	buf := make([]float64, n)
	copy(buf, segment)

	// 去直流：减去算术平均
	mean := floats.Sum(buf) / float64(n)
	for i := range buf {
		buf[i] -= mean
	}

	// 汉宁窗抑制频谱泄漏
	for i := range buf {
		buf[i] *= 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}

	// 实输入对称性：只保留前 N/2 个频点的幅值
	spectrum := fft.FFTReal(buf)
	mags := make([]float64, n/2)
	for i := range mags {
		mags[i] = cmplx.Abs(spectrum[i])
	}

	resolution := e.cfg.SampleRate / float64(n)
	return coremodel.FrequencyBands{
		Delta: bandPower(mags, e.cfg.Bands.Delta, resolution),
		Theta: bandPower(mags, e.cfg.Bands.Theta, resolution),
		Alpha: bandPower(mags, e.cfg.Bands.Alpha, resolution),
		Beta:  bandPower(mags, e.cfg.Bands.Beta, resolution),
		Gamma: bandPower(mags, e.cfg.Bands.Gamma, resolution),
	}
}

// bandPower 频段内频点幅值的平均；频段不覆盖任何频点时为 0
func bandPower(mags []float64, band BandRange, resolution float64) float64 {
	lo := int(math.Floor(band.Low / resolution))
	hi := int(math.Ceil(band.High / resolution))
	if lo < 0 {
		lo = 0
	}
	if hi > len(mags)-1 {
		hi = len(mags) - 1
	}
	if lo > hi {
		return 0
	}
	var sum float64
	for i := lo; i <= hi; i++ {
		sum += mags[i]
	}
	return sum / float64(hi-lo+1)
}
