package neuro

import (
	"time"

	"github.com/calmwave/eeg-server/internal/coremodel"
)

const sampleBytes = 3 // 每个采样占3字节，大端有符号24位

// Calibration 采样校准参数（由设备参考电压、增益与分辨率决定）
type Calibration struct {
	Vref float64 // 参考电压（V）
	Gain float64 // 放大器增益
}

// DefaultCalibration 默认校准参数
var DefaultCalibration = Calibration{Vref: 2.4, Gain: 6}

// Scale 每LSB对应的微伏数：(Vref/Gain)/(2^23-1)*1e6
func (c Calibration) Scale() float64 {
	return (c.Vref / c.Gain) / float64(1<<23-1) * 1e6
}

// DecodeSamples 将一个有效数据帧的payload解为校准后的采样序列
// 组合方式：(b0<<16)|(b1<<8)|b2，bit23 置位时减 0x1000000 做符号扩展；
// 不足3字节的尾部属于被截断的采样，静默丢弃（接受的有损边界情形）
func DecodeSamples(payload []byte, scale float64, at time.Time) []coremodel.RawSample {
	n := len(payload) / sampleBytes
	if n == 0 {
		return nil
	}
	ts := at.UnixMilli()
	out := make([]coremodel.RawSample, 0, n)
	for i := 0; i < n; i++ {
		p := i * sampleBytes
		v := int32(payload[p])<<16 | int32(payload[p+1])<<8 | int32(payload[p+2])
		if v&(1<<23) != 0 {
			v -= 1 << 24
		}
		out = append(out, coremodel.RawSample{
			TimestampMillis: ts,
			Microvolts:      float64(v) * scale,
		})
	}
	return out
}
