package simulation

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/calmwave/eeg-server/internal/coremodel"
)

// Config 仿真引擎参数
type Config struct {
	TickInterval        time.Duration // 固定节拍周期
	DecayFactor         float64       // 激动值每拍几何衰减系数
	Smoothing           float64       // 放松度指数平滑系数（旧值权重）
	Saturation          float64       // 激动值归一化饱和常数
	MotionThreshold     float64       // 运动增量计入激动值的最小幅度
	JitterAmplitude     float64       // 频段功率随机抖动幅度
	MeditationThreshold float64       // 冥想判定阈值（与设备路径一致）
}

// DefaultConfig 默认仿真参数
func DefaultConfig() Config {
	return Config{
		TickInterval:        100 * time.Millisecond,
		DecayFactor:         0.96,
		Smoothing:           0.85,
		Saturation:          30,
		MotionThreshold:     0.3,
		JitterAmplitude:     2,
		MeditationThreshold: 0.85,
	}
}

// Engine 无硬件时的替代数据源
// 以"激动值"标量替代生理唤醒：随运动传感器增量累积、按拍几何衰减，
// 由此合成与设备路径同形的快照（频段为呈现用代数合成，非DSP输出）
type Engine struct {
	cfg     Config
	logger  *zap.Logger
	publish func(coremodel.Snapshot)

	mu         sync.Mutex
	agitation  float64
	relaxation float64
	prevMotion [3]float64
	hasMotion  bool
	phase      float64
	rng        *rand.Rand
}

// New 创建仿真引擎；publish 在每个节拍收到新快照
func New(cfg Config, logger *zap.Logger, publish func(coremodel.Snapshot)) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publish == nil {
		publish = func(coremodel.Snapshot) {}
	}
	return &Engine{
		cfg:     cfg,
		logger:  logger,
		publish: publish,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AddMotion 馈入设备运动加速度采样 {x,y,z}
// 与上一采样的增量幅度超过阈值时计入激动值；无运动输入是合法状态，
// 激动值将自然衰减趋向平静基线
func (e *Engine) AddMotion(x, y, z float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := [3]float64{x, y, z}
	if e.hasMotion {
		dx := cur[0] - e.prevMotion[0]
		dy := cur[1] - e.prevMotion[1]
		dz := cur[2] - e.prevMotion[2]
		mag := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if mag > e.cfg.MotionThreshold {
			e.agitation += mag
		}
	}
	e.prevMotion = cur
	e.hasMotion = true
}

// Run 以固定节拍运行直到 ctx 取消
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	e.logger.Info("simulation started", zap.Duration("tick", e.cfg.TickInterval))
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("simulation stopped")
			return
		case now := <-ticker.C:
			e.publish(e.Tick(now))
		}
	}
}

// Tick 推进一个节拍并合成快照（导出以便测试直接驱动）
func (e *Engine) Tick(now time.Time) coremodel.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.agitation *= e.cfg.DecayFactor

	normalized := e.agitation / e.cfg.Saturation
	if normalized > 1 {
		normalized = 1
	}
	target := 1 - normalized

	// 指数平滑避免放松度跳变
	e.relaxation = e.cfg.Smoothing*e.relaxation + (1-e.cfg.Smoothing)*target

	relaxation := clamp01(e.relaxation)
	attention := 1 - relaxation

	metrics := coremodel.AnalysisMetrics{
		Attention:  attention,
		Relaxation: relaxation,
		Meditating: relaxation > e.cfg.MeditationThreshold,
	}

	bands := coremodel.FrequencyBands{
		Delta: e.jitter(12 + 6*relaxation),
		Theta: e.jitter(10 + 8*relaxation),
		Alpha: e.jitter(8 + 30*relaxation),
		Beta:  e.jitter(6 + 24*attention),
		Gamma: e.jitter(4 + 10*attention),
	}

	// 原始信号：放松时慢而高幅，紧张时快、低幅且带噪
	freq := 2 + 18*(1-relaxation)
	amplitude := 20 + 60*relaxation
	e.phase += 2 * math.Pi * freq * e.cfg.TickInterval.Seconds()
	value := amplitude * math.Sin(e.phase)
	value += (1 - relaxation) * amplitude * 0.2 * (e.rng.Float64()*2 - 1)

	return coremodel.Snapshot{
		Raw: coremodel.RawSample{
			TimestampMillis: now.UnixMilli(),
			Microvolts:      value,
		},
		Bands:   bands,
		Metrics: metrics,
	}
}

// jitter 在基值上叠加有界随机抖动，结果不为负
func (e *Engine) jitter(base float64) float64 {
	v := base + e.cfg.JitterAmplitude*(e.rng.Float64()*2-1)
	if v < 0 {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
