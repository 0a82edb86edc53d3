package neuro

import (
	"bytes"

	"go.uber.org/zap"
)

// DecoderState 解码器状态机状态
type DecoderState int

const (
	StateSearching  DecoderState = iota // 寻找包头
	StateHeader                         // 等待完整帧头
	StatePayload                        // 等待完整payload
	StateValidating                     // 校验包尾与CRC
)

// StreamDecoder 字节流帧解码器
// 持有未消费字节的累积缓冲区；每次 Feed 后缓冲区要么为空，
// 要么只剩一个可能的未完成帧前缀
type StreamDecoder struct {
	buf    []byte
	state  DecoderState
	logger *zap.Logger

	// 可选诊断回调
	onCRCMismatch func(expected, actual byte)
	onResync      func(dropped int)
}

// NewStreamDecoder 创建帧解码器
func NewStreamDecoder(logger *zap.Logger) *StreamDecoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamDecoder{logger: logger}
}

// SetDiagnostics 设置诊断回调（CRC不匹配、重同步丢弃字节数）
func (d *StreamDecoder) SetDiagnostics(onCRCMismatch func(expected, actual byte), onResync func(dropped int)) {
	d.onCRCMismatch, d.onResync = onCRCMismatch, onResync
}

// Feed 追加新收到的字节并运行解码循环，返回本次解出的全部有效帧
//
// 恢复策略：包尾错位或CRC不匹配时只丢弃一个前导字节后重试（单字节重同步），
// 保证任意畸形输入下都能前进；缓冲区中找不到包头时整体丢弃
func (d *StreamDecoder) Feed(p []byte) []*Frame {
	d.buf = append(d.buf, p...)
	var out []*Frame
	for {
		d.state = StateSearching

		// 不足最小帧长，等待更多数据
		if len(d.buf) < minFrameSize {
			return out
		}

		// 定位包头；完全没有包头则视为噪声整体丢弃
		idx := bytes.IndexByte(d.buf, StartMarker)
		if idx < 0 {
			d.drop(len(d.buf))
			return out
		}
		if idx > 0 {
			d.drop(idx)
			continue
		}

		// 等待完整帧头
		d.state = StateHeader
		if len(d.buf) < headerSize {
			return out
		}
		function := d.buf[1]
		address := d.buf[2]
		length := int(d.buf[3])
		frameSize := headerSize + length + trailerSize

		// 等待完整帧
		d.state = StatePayload
		if len(d.buf) < frameSize {
			return out
		}

		d.state = StateValidating

		// 包尾错位：只丢一个字节，后面的字节仍可能是有效包头
		if d.buf[frameSize-1] != EndMarker {
			d.drop(1)
			continue
		}

		expected := Checksum(d.buf[1 : frameSize-trailerSize])
		actual := d.buf[frameSize-trailerSize]
		if expected != actual {
			d.logger.Warn("frame crc mismatch",
				zap.Uint8("expected", expected),
				zap.Uint8("actual", actual))
			if d.onCRCMismatch != nil {
				d.onCRCMismatch(expected, actual)
			}
			d.drop(1)
			continue
		}

		payload := make([]byte, length)
		copy(payload, d.buf[headerSize:headerSize+length])
		out = append(out, &Frame{Function: function, Address: address, Payload: payload})

		// 消费整帧
		d.buf = d.buf[frameSize:]
	}
}

// Reset 清空缓冲区与状态（切换数据源或停止会话时调用）
func (d *StreamDecoder) Reset() {
	d.buf = nil
	d.state = StateSearching
}

// Buffered 当前缓冲区内未消费的字节数
func (d *StreamDecoder) Buffered() int {
	return len(d.buf)
}

// State 当前状态机状态（用于测试与诊断）
func (d *StreamDecoder) State() DecoderState {
	return d.state
}

// drop 丢弃前导字节并上报重同步
func (d *StreamDecoder) drop(n int) {
	d.buf = d.buf[n:]
	if d.onResync != nil {
		d.onResync(n)
	}
}
