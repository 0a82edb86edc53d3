package transport

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Transport 串口式字节流传输：打开后持续接收，关闭释放阻塞中的读取
type Transport interface {
	io.ReadWriteCloser
}

// OpenSerial 打开串口传输
// 打开失败只影响本次连接尝试，由调用方决定是否回退到仿真
func OpenSerial(port string, baudRate int) (Transport, error) {
	mode := &serial.Mode{BaudRate: baudRate}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	return p, nil
}

// ListPorts 枚举可用串口
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
