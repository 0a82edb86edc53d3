package transport

import (
	"io"
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"
)

// Loopback 进程内环回传输（测试与演示用）
// 入站环形缓冲模拟设备→主机方向，出站环形缓冲捕获主机写出的帧
type Loopback struct {
	in  *ringbuffer.RingBuffer
	out *ringbuffer.RingBuffer

	closeOnce sync.Once
	closed    chan struct{}
}

// NewLoopback 创建环回传输，size 为两个方向各自的缓冲容量
func NewLoopback(size int) *Loopback {
	if size <= 0 {
		size = 4096
	}
	return &Loopback{
		in:     ringbuffer.New(size),
		out:    ringbuffer.New(size),
		closed: make(chan struct{}),
	}
}

// Read 读取入站字节；无数据时短暂轮询等待，关闭后返回 io.EOF
func (l *Loopback) Read(p []byte) (int, error) {
	for {
		n, err := l.in.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && err != ringbuffer.ErrIsEmpty {
			return 0, err
		}
		select {
		case <-l.closed:
			return 0, io.EOF
		case <-time.After(time.Millisecond):
		}
	}
}

// Write 写出站字节（主机→设备方向，如握手帧）
func (l *Loopback) Write(p []byte) (int, error) {
	select {
	case <-l.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	return l.out.Write(p)
}

// Close 关闭传输并释放阻塞中的 Read
func (l *Loopback) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

// Inject 注入设备侧入站字节（测试驱动）
func (l *Loopback) Inject(p []byte) (int, error) {
	select {
	case <-l.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	return l.in.Write(p)
}

// Sent 取出主机已写出的全部字节（测试断言）
func (l *Loopback) Sent() []byte {
	buf := make([]byte, l.out.Length())
	if len(buf) == 0 {
		return nil
	}
	n, _ := l.out.Read(buf)
	return buf[:n]
}
