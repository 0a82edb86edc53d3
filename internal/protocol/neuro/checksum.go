package neuro

// Checksum 计算 CRC-8/Maxim 校验值
// 初值 0，逐字节按低位在前处理，空输入返回 0
func Checksum(data []byte) byte {
	var crc byte
	for _, b := range data {
		for i := 0; i < 8; i++ {
			mix := (crc ^ b) & 0x01
			crc >>= 1
			if mix != 0 {
				crc ^= CRC8Poly
			}
			b >>= 1
		}
	}
	return crc
}
