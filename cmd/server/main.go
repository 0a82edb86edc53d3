package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/calmwave/eeg-server/internal/config"
	"github.com/calmwave/eeg-server/internal/coremodel"
	"github.com/calmwave/eeg-server/internal/dsp"
	"github.com/calmwave/eeg-server/internal/httpserver"
	"github.com/calmwave/eeg-server/internal/logging"
	"github.com/calmwave/eeg-server/internal/metrics"
	"github.com/calmwave/eeg-server/internal/protocol/neuro"
	"github.com/calmwave/eeg-server/internal/session"
	"github.com/calmwave/eeg-server/internal/simulation"
	"github.com/calmwave/eeg-server/internal/transport"
)

func main() {
	// 1) 加载配置
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	// 3) 指标注册与处理器
	reg := metrics.NewRegistry()
	appMetrics := metrics.NewAppMetrics(reg)
	metricsHandler := metrics.Handler(reg)

	// 4) 会话编排：帧解码 → 采样校准 → 频谱分析 → 快照发布
	sess := session.New(buildSessionConfig(cfg), log)
	sess.SetHooks(session.Hooks{
		OnBytes: func(n int) { appMetrics.BytesReceived.Add(float64(n)) },
		OnFrame: func(result string) { appMetrics.FrameTotal.WithLabelValues(result).Inc() },
		OnResync: func(dropped int) {
			appMetrics.ResyncDropTotal.Add(float64(dropped))
		},
		OnSamples: func(n int) { appMetrics.SampleTotal.Add(float64(n)) },
		OnAnalysis: func(m coremodel.AnalysisMetrics) {
			appMetrics.AnalysisTotal.Inc()
			appMetrics.RelaxationGauge.Set(m.Relaxation)
			appMetrics.AttentionGauge.Set(m.Attention)
			if m.Meditating {
				appMetrics.MeditatingGauge.Set(1)
			} else {
				appMetrics.MeditatingGauge.Set(0)
			}
		},
	})

	// 5) 数据源：优先串口设备，失败则回退仿真
	if cfg.Serial.Port != "" {
		if err := connectSerial(sess, cfg.Serial, log); err != nil {
			log.Warn("serial device unavailable, falling back to simulation",
				zap.String("port", cfg.Serial.Port), zap.Error(err))
			startSimulation(sess, log)
		}
	} else {
		log.Info("no serial port configured, running in simulation mode")
		startSimulation(sess, log)
	}

	// 6) HTTP 服务：快照拉取、websocket 推送、运动上报
	httpSrv := httpserver.New(cfg.HTTP, sess, log, cfg.Metrics.Path, metricsHandler, func() bool {
		_, active, _ := sess.Snapshot()
		return active
	})
	httpSrv.SetStreamGauge(func(delta int) {
		appMetrics.SnapshotStreams.Add(float64(delta))
	})

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}()

	// 信号处理，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	sess.Stop()
}

// buildSessionConfig 把文件配置映射为会话参数
func buildSessionConfig(cfg *cfgpkg.Config) session.Config {
	dspCfg := dsp.Config{
		SampleRate:          cfg.Acquisition.SampleRate,
		WindowSize:          cfg.Acquisition.WindowSize,
		Overlap:             cfg.Acquisition.Overlap,
		Epsilon:             cfg.Acquisition.Epsilon,
		Damping:             cfg.Acquisition.Damping,
		MeditationThreshold: cfg.Acquisition.MeditationThreshold,
		Bands: dsp.BandRanges{
			Delta: dsp.BandRange{Low: cfg.Acquisition.Bands.Delta.Low, High: cfg.Acquisition.Bands.Delta.High},
			Theta: dsp.BandRange{Low: cfg.Acquisition.Bands.Theta.Low, High: cfg.Acquisition.Bands.Theta.High},
			Alpha: dsp.BandRange{Low: cfg.Acquisition.Bands.Alpha.Low, High: cfg.Acquisition.Bands.Alpha.High},
			Beta:  dsp.BandRange{Low: cfg.Acquisition.Bands.Beta.Low, High: cfg.Acquisition.Bands.Beta.High},
			Gamma: dsp.BandRange{Low: cfg.Acquisition.Bands.Gamma.Low, High: cfg.Acquisition.Bands.Gamma.High},
		},
	}
	simCfg := simulation.Config{
		TickInterval:    cfg.Simulation.TickInterval,
		DecayFactor:     cfg.Simulation.DecayFactor,
		Smoothing:       cfg.Simulation.Smoothing,
		Saturation:      cfg.Simulation.Saturation,
		MotionThreshold: cfg.Simulation.MotionThreshold,
		JitterAmplitude: cfg.Simulation.JitterAmplitude,
		// 冥想阈值与设备路径共用采集配置
		MeditationThreshold: cfg.Acquisition.MeditationThreshold,
	}
	return session.Config{
		DeviceID:    cfg.Serial.DeviceID,
		Calibration: neuro.Calibration{Vref: cfg.Acquisition.Vref, Gain: cfg.Acquisition.Gain},
		DSP:         dspCfg,
		Simulation:  simCfg,
	}
}

// connectSerial 打开串口并接入设备数据路径
func connectSerial(sess *session.Session, cfg cfgpkg.SerialConfig, log *zap.Logger) error {
	port, err := transport.OpenSerial(cfg.Port, cfg.BaudRate)
	if err != nil {
		return err
	}
	if err := sess.ConnectDevice(port); err != nil {
		return err
	}
	log.Info("serial device connected",
		zap.String("port", cfg.Port), zap.Int("baud", cfg.BaudRate))
	return nil
}

func startSimulation(sess *session.Session, log *zap.Logger) {
	if err := sess.StartSimulation(); err != nil {
		log.Fatal("start simulation", zap.Error(err))
	}
}
