package session

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmwave/eeg-server/internal/dsp"
	"github.com/calmwave/eeg-server/internal/protocol/neuro"
	"github.com/calmwave/eeg-server/internal/simulation"
	"github.com/calmwave/eeg-server/internal/transport"
)

func testConfig() Config {
	simCfg := simulation.DefaultConfig()
	simCfg.TickInterval = 5 * time.Millisecond
	return Config{
		DeviceID:    "123456",
		Calibration: neuro.DefaultCalibration,
		DSP:         dsp.DefaultConfig(),
		Simulation:  simCfg,
	}
}

// alphaFrames 构造携带 10Hz 正弦采样的数据帧序列，总采样数 >= total
func alphaFrames(total int, sampleRate float64) [][]byte {
	const perFrame = 84 // 84*3 = 252 字节 payload
	var frames [][]byte
	for produced := 0; produced < total; {
		values := make([]int32, perFrame)
		for i := range values {
			values[i] = int32(20000 * math.Sin(2*math.Pi*10*float64(produced+i)/sampleRate))
		}
		frames = append(frames, neuro.BuildDataFrame(values))
		produced += perFrame
	}
	return frames
}

func TestSession_DeviceEndToEnd(t *testing.T) {
	cfg := testConfig()
	s := New(cfg, nil)
	l := transport.NewLoopback(1 << 16)

	require.NoError(t, s.ConnectDevice(l))

	// 握手帧在连接时同步发送，恰好一次
	require.Equal(t, neuro.BuildHandshake("123456"), l.Sent())

	// 注入足够填满分析窗口的数据帧
	for _, f := range alphaFrames(cfg.DSP.WindowSize+128, cfg.DSP.SampleRate) {
		_, err := l.Inject(f)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		snap, active, simulating := s.Snapshot()
		return active && !simulating && snap.Bands.Alpha > 0
	}, 2*time.Second, 10*time.Millisecond, "analysis never completed")

	snap, _, _ := s.Snapshot()
	assert.Greater(t, snap.Bands.Alpha, snap.Bands.Delta, "alpha should dominate for 10Hz input")
	assert.GreaterOrEqual(t, snap.Metrics.Relaxation, 0.0)
	assert.LessOrEqual(t, snap.Metrics.Relaxation, 1.0)
	assert.NotZero(t, snap.Raw.TimestampMillis)

	// 停止后状态整体复位
	s.Stop()
	snap, active, simulating := s.Snapshot()
	assert.False(t, active)
	assert.False(t, simulating)
	assert.Zero(t, snap.Bands)
	assert.Zero(t, snap.Raw.Microvolts)
}

func TestSession_MutualExclusion(t *testing.T) {
	s := New(testConfig(), nil)
	l := transport.NewLoopback(1024)

	require.NoError(t, s.ConnectDevice(l))
	assert.Error(t, s.StartSimulation(), "simulation must not start while device active")
	assert.False(t, s.AddMotion(1, 2, 3), "motion input rejected on device path")
	s.Stop()

	require.NoError(t, s.StartSimulation())
	l2 := transport.NewLoopback(1024)
	assert.Error(t, s.ConnectDevice(l2), "device must not connect while simulating")
	l2.Close()
	s.Stop()
}

func TestSession_SimulationPath(t *testing.T) {
	s := New(testConfig(), nil)
	require.NoError(t, s.StartSimulation())

	require.Eventually(t, func() bool {
		snap, active, simulating := s.Snapshot()
		return active && simulating && snap.Metrics.Relaxation > 0
	}, time.Second, 5*time.Millisecond, "simulation never published")

	assert.True(t, s.AddMotion(0, 0, 0))
	assert.True(t, s.AddMotion(10, 10, 10))

	s.Stop()
	_, active, simulating := s.Snapshot()
	assert.False(t, active)
	assert.False(t, simulating)
}

func TestSession_ReadLoopTermination(t *testing.T) {
	s := New(testConfig(), nil)
	l := transport.NewLoopback(1024)
	require.NoError(t, s.ConnectDevice(l))

	// 流关闭结束会话：标记断开，不自动重连
	l.Close()
	require.Eventually(t, func() bool {
		_, active, _ := s.Snapshot()
		return !active
	}, time.Second, 5*time.Millisecond, "session did not mark disconnected")

	// 显式 Stop 之后可以重新连接
	s.Stop()
	l2 := transport.NewLoopback(1024)
	require.NoError(t, s.ConnectDevice(l2))
	s.Stop()
}

func TestSession_CorruptFrameDiagnostics(t *testing.T) {
	s := New(testConfig(), nil)

	var crcErrors, resyncs atomic.Int64
	s.SetHooks(Hooks{
		OnFrame: func(result string) {
			if result == "crc_error" {
				crcErrors.Add(1)
			}
		},
		OnResync: func(n int) { resyncs.Add(int64(n)) },
	})

	l := transport.NewLoopback(4096)
	require.NoError(t, s.ConnectDevice(l))

	frame := neuro.BuildDataFrame([]int32{1, 2, 3})
	frame[5] ^= 0x01 // 破坏payload
	_, err := l.Inject(frame)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return crcErrors.Load() > 0 && resyncs.Load() > 0
	}, time.Second, 5*time.Millisecond, "corrupt frame not surfaced as diagnostics")

	s.Stop()
}
