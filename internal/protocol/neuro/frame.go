package neuro

// Frame 头环协议帧结构
// 格式：aa(1) + function(1) + address(1) + len(1) + payload(len) + crc(1) + bb(1)
// CRC 覆盖 function..payload（不含包头、包尾与 CRC 本身）
type Frame struct {
	Function byte   // 功能码：0xf0-数据帧，0xb0-握手
	Address  byte   // 设备地址
	Payload  []byte // 数据payload
}

// 协议常量
const (
	StartMarker = 0xAA // 包头
	EndMarker   = 0xBB // 包尾

	FuncData      = 0xF0 // 数据帧功能码
	FuncHandshake = 0xB0 // 握手帧功能码

	// CRC8Poly Maxim/Dallas CRC-8 多项式 0x31 的位反射形式
	CRC8Poly = 0x8C

	headerSize   = 4 // start + function + address + len
	trailerSize  = 2 // crc + end
	minFrameSize = headerSize + trailerSize
)

// IsData 判断是否为数据帧（payload 为 24 位采样序列）
func (f *Frame) IsData() bool {
	return f.Function == FuncData
}
