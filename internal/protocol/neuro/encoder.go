package neuro

import "strconv"

// BuildHandshake 构造连接建立时的握手帧
// 设备ID清洗为纯数字后右补'0'至6位并截断，按2字符一组以十六进制
// 解析为3个压缩十进制字节（取字面编码而非数值）
// 帧格式：aa + [b0 b0 03 id1 id2 id3] + crc + bb
func BuildHandshake(deviceID string) []byte {
	digits := make([]byte, 0, 6)
	for i := 0; i < len(deviceID) && len(digits) < 6; i++ {
		if c := deviceID[i]; c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}
	for len(digits) < 6 {
		digits = append(digits, '0')
	}

	payload := []byte{FuncHandshake, FuncHandshake, 0x03, 0, 0, 0}
	for i := 0; i < 3; i++ {
		// 纯数字输入下十六进制解析不会失败
		v, _ := strconv.ParseUint(string(digits[2*i:2*i+2]), 16, 8)
		payload[3+i] = byte(v)
	}

	frame := make([]byte, 0, len(payload)+3)
	frame = append(frame, StartMarker)
	frame = append(frame, payload...)
	frame = append(frame, Checksum(payload), EndMarker)
	return frame
}

// BuildDataFrame 构造上行数据帧 (用于测试与环回演示)
// 每个采样值编码为3字节大端有符号24位
func BuildDataFrame(values []int32) []byte {
	payload := make([]byte, 0, len(values)*sampleBytes)
	for _, v := range values {
		payload = append(payload, byte(v>>16), byte(v>>8), byte(v))
	}

	body := make([]byte, 0, 3+len(payload))
	body = append(body, FuncData, 0x00, byte(len(payload)))
	body = append(body, payload...)

	frame := make([]byte, 0, len(body)+3)
	frame = append(frame, StartMarker)
	frame = append(frame, body...)
	frame = append(frame, Checksum(body), EndMarker)
	return frame
}
