package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calmwave/eeg-server/internal/coremodel"
	"github.com/calmwave/eeg-server/internal/dsp"
	"github.com/calmwave/eeg-server/internal/protocol/neuro"
	"github.com/calmwave/eeg-server/internal/simulation"
	"github.com/calmwave/eeg-server/internal/transport"
)

// Mode 当前数据源
type Mode int

const (
	ModeIdle       Mode = iota // 无活跃数据源
	ModeDevice                 // 真实设备（串口帧协议）
	ModeSimulation             // 仿真引擎
)

// Config 会话参数
type Config struct {
	DeviceID    string            // 握手用设备标识
	Calibration neuro.Calibration // 采样校准参数
	DSP         dsp.Config        // 频谱分析参数
	Simulation  simulation.Config // 仿真参数
}

// Hooks 可选指标回调，由上层接入 Prometheus
type Hooks struct {
	OnBytes    func(n int)
	OnFrame    func(result string) // ok / crc_error
	OnResync   func(dropped int)
	OnSamples  func(n int)
	OnAnalysis func(m coremodel.AnalysisMetrics)
}

// Session 设备会话编排器
// 同一时刻只有一个活跃数据源：设备读取回路或仿真引擎，二者互斥；
// 快照以指针整体替换发布，消费侧任意频率读取都无副作用
type Session struct {
	cfg    Config
	logger *zap.Logger
	hooks  Hooks

	mu        sync.Mutex
	mode      Mode
	cancel    context.CancelFunc
	done      chan struct{}
	transport transport.Transport
	decoder   *neuro.StreamDecoder
	engine    *dsp.Engine
	sim       *simulation.Engine

	snapshot   atomic.Pointer[coremodel.Snapshot]
	connected  atomic.Bool
	simulating atomic.Bool
}

// New 创建会话
func New(cfg Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{cfg: cfg, logger: logger}
	s.snapshot.Store(&coremodel.Snapshot{})
	return s
}

// SetHooks 设置指标回调，必须在启动数据源前调用
func (s *Session) SetHooks(h Hooks) {
	s.hooks = h
}

// ConnectDevice 接管传输并启动设备数据路径
// 先发送一次握手帧（fire-and-forget，无应答协议），随后在独立
// goroutine 中运行读取回路；传输失败只使本次连接尝试失败，
// 由调用方决定是否回退到仿真
func (s *Session) ConnectDevice(t transport.Transport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeIdle {
		return fmt.Errorf("session already active (mode=%d)", s.mode)
	}

	engine, err := dsp.New(s.cfg.DSP)
	if err != nil {
		_ = t.Close()
		return err
	}

	if _, err := t.Write(neuro.BuildHandshake(s.cfg.DeviceID)); err != nil {
		_ = t.Close()
		return fmt.Errorf("send handshake: %w", err)
	}

	decoder := neuro.NewStreamDecoder(s.logger)
	decoder.SetDiagnostics(
		func(expected, actual byte) {
			if s.hooks.OnFrame != nil {
				s.hooks.OnFrame("crc_error")
			}
		},
		func(dropped int) {
			if s.hooks.OnResync != nil {
				s.hooks.OnResync(dropped)
			}
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	id := uuid.NewString()

	s.mode = ModeDevice
	s.cancel = cancel
	s.done = done
	s.transport = t
	s.decoder = decoder
	s.engine = engine
	s.connected.Store(true)

	s.logger.Info("device session started",
		zap.String("session_id", id),
		zap.String("device_id", s.cfg.DeviceID))

	go s.readLoop(ctx, t, decoder, engine, done, id)
	return nil
}

// readLoop 持续读取 → 帧解码 → 采样解码 → 频谱分析 → 快照发布
// 解码与分析都是有界同步工作，在同一调用链内完成
func (s *Session) readLoop(ctx context.Context, t transport.Transport, decoder *neuro.StreamDecoder, engine *dsp.Engine, done chan struct{}, id string) {
	defer close(done)
	defer s.connected.Store(false)

	scale := s.cfg.Calibration.Scale()
	buf := make([]byte, 4096)
	for {
		n, err := t.Read(buf)
		if n > 0 {
			if s.hooks.OnBytes != nil {
				s.hooks.OnBytes(n)
			}
			s.handleFrames(decoder.Feed(buf[:n]), engine, scale)
		}
		if err != nil {
			select {
			case <-ctx.Done():
				s.logger.Info("read loop cancelled", zap.String("session_id", id))
			default:
				if errors.Is(err, io.EOF) {
					s.logger.Info("stream closed", zap.String("session_id", id))
				} else {
					s.logger.Warn("read error", zap.String("session_id", id), zap.Error(err))
				}
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// handleFrames 处理一批已校验的帧：只有数据帧进入采样解码
func (s *Session) handleFrames(frames []*neuro.Frame, engine *dsp.Engine, scale float64) {
	for _, f := range frames {
		if s.hooks.OnFrame != nil {
			s.hooks.OnFrame("ok")
		}
		if !f.IsData() {
			continue
		}
		samples := neuro.DecodeSamples(f.Payload, scale, time.Now())
		if len(samples) == 0 {
			continue
		}
		if s.hooks.OnSamples != nil {
			s.hooks.OnSamples(len(samples))
		}

		values := make([]float64, len(samples))
		for i, sm := range samples {
			values[i] = sm.Microvolts
		}
		bands, metrics, analyzed := engine.Append(values...)
		if analyzed && s.hooks.OnAnalysis != nil {
			s.hooks.OnAnalysis(metrics)
		}

		s.publish(coremodel.Snapshot{
			Raw:     samples[len(samples)-1],
			Bands:   bands,
			Metrics: metrics,
		})
	}
}

// StartSimulation 启动仿真数据路径（与设备路径互斥）
func (s *Session) StartSimulation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeIdle {
		return fmt.Errorf("session already active (mode=%d)", s.mode)
	}

	sim := simulation.New(s.cfg.Simulation, s.logger, func(snap coremodel.Snapshot) {
		s.publish(snap)
		if s.hooks.OnAnalysis != nil {
			s.hooks.OnAnalysis(snap.Metrics)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	id := uuid.NewString()

	s.mode = ModeSimulation
	s.cancel = cancel
	s.done = done
	s.sim = sim
	s.simulating.Store(true)

	s.logger.Info("simulation session started", zap.String("session_id", id))

	go func() {
		defer close(done)
		defer s.simulating.Store(false)
		sim.Run(ctx)
	}()
	return nil
}

// AddMotion 向仿真引擎馈入运动采样；仿真未运行时返回 false
func (s *Session) AddMotion(x, y, z float64) bool {
	s.mu.Lock()
	sim := s.sim
	s.mu.Unlock()
	if sim == nil || !s.simulating.Load() {
		return false
	}
	sim.AddMotion(x, y, z)
	return true
}

// Stop 停止当前数据源并复位全部状态
// 释放阻塞中的读取（通过关闭传输）、丢弃进行中的解码状态、清空
// 采样窗口与快照；停止/重启周期之间不残留任何半帧。重连是显式的
// 调用方动作，本方法不自动重试
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeIdle {
		return
	}

	s.cancel()
	if s.transport != nil {
		_ = s.transport.Close()
	}
	<-s.done

	if s.decoder != nil {
		s.decoder.Reset()
	}
	if s.engine != nil {
		s.engine.Reset()
	}
	s.snapshot.Store(&coremodel.Snapshot{})

	s.mode = ModeIdle
	s.cancel = nil
	s.done = nil
	s.transport = nil
	s.decoder = nil
	s.engine = nil
	s.sim = nil

	s.logger.Info("session stopped")
}

// Snapshot 幂等拉取访问器
// 返回最近一次完整发布的快照、活跃标志（已连接或仿真中）与仿真标志
func (s *Session) Snapshot() (coremodel.Snapshot, bool, bool) {
	snap := *s.snapshot.Load()
	simulating := s.simulating.Load()
	active := s.connected.Load() || simulating
	return snap, active, simulating
}

// publish 以整体替换方式发布新快照，消费侧不会观察到部分更新
func (s *Session) publish(snap coremodel.Snapshot) {
	s.snapshot.Store(&snap)
}
