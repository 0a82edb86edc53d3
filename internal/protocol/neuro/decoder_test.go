package neuro

import (
	"bytes"
	"testing"
)

// 有效数据帧：payload 为采样 1000 (0x0003E8) 与 -1000 (0xFFFC18)
var validDataFrame = []byte{
	0xAA, 0xF0, 0x00, 0x06,
	0x00, 0x03, 0xE8,
	0xFF, 0xFC, 0x18,
	0x6C, 0xBB,
}

func TestStreamDecoder_SingleFrame(t *testing.T) {
	d := NewStreamDecoder(nil)
	frames := d.Feed(validDataFrame)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	f := frames[0]
	if !f.IsData() {
		t.Errorf("function = 0x%02x, want data frame", f.Function)
	}
	if f.Address != 0x00 {
		t.Errorf("address = 0x%02x, want 0", f.Address)
	}
	if !bytes.Equal(f.Payload, validDataFrame[4:10]) {
		t.Errorf("payload = %x, want %x", f.Payload, validDataFrame[4:10])
	}
	if d.Buffered() != 0 {
		t.Errorf("buffered = %d, want 0", d.Buffered())
	}
}

func TestStreamDecoder_SplitAtEveryPoint(t *testing.T) {
	// 任意切分点分两次投喂，都必须恰好解出一帧
	for split := 1; split < len(validDataFrame); split++ {
		d := NewStreamDecoder(nil)
		frames := d.Feed(validDataFrame[:split])
		if len(frames) != 0 {
			t.Fatalf("split %d: premature frame", split)
		}
		frames = append(frames, d.Feed(validDataFrame[split:])...)
		if len(frames) != 1 {
			t.Fatalf("split %d: frames = %d, want 1", split, len(frames))
		}
		if d.Buffered() != 0 {
			t.Fatalf("split %d: buffered = %d, want 0", split, d.Buffered())
		}
	}
}

func TestStreamDecoder_ByteAtATime(t *testing.T) {
	d := NewStreamDecoder(nil)
	var frames []*Frame
	for _, b := range validDataFrame {
		frames = append(frames, d.Feed([]byte{b})...)
	}
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
}

func TestStreamDecoder_CRCMismatchResync(t *testing.T) {
	// 翻转一个payload位：该帧必须被丢弃，且丢弃后能在后续有效帧上恢复
	corrupted := append([]byte(nil), validDataFrame...)
	corrupted[5] ^= 0x01

	var mismatches int
	var dropped int
	d := NewStreamDecoder(nil)
	d.SetDiagnostics(
		func(expected, actual byte) { mismatches++ },
		func(n int) { dropped += n },
	)

	frames := d.Feed(corrupted)
	if len(frames) != 0 {
		t.Fatalf("corrupted frame decoded, frames = %d", len(frames))
	}
	if mismatches == 0 {
		t.Error("crc mismatch not reported")
	}
	if dropped == 0 {
		t.Error("no bytes dropped during resync")
	}

	// 紧随其后的有效帧必须正常解出
	frames = d.Feed(validDataFrame)
	if len(frames) != 1 {
		t.Fatalf("recovery frames = %d, want 1", len(frames))
	}
	if d.Buffered() != 0 {
		t.Errorf("buffered after recovery = %d, want 0", d.Buffered())
	}
}

func TestStreamDecoder_BadEndMarker(t *testing.T) {
	bad := append([]byte(nil), validDataFrame...)
	bad[len(bad)-1] = 0x00 // 破坏包尾

	d := NewStreamDecoder(nil)
	frames := d.Feed(bad)
	if len(frames) != 0 {
		t.Fatalf("misaligned frame decoded")
	}
	frames = d.Feed(validDataFrame)
	if len(frames) != 1 {
		t.Fatalf("recovery frames = %d, want 1", len(frames))
	}
}

func TestStreamDecoder_PureNoise(t *testing.T) {
	// 不含包头的噪声必须被整体丢弃
	noise := make([]byte, 64)
	for i := range noise {
		noise[i] = byte(i%0x90) + 1 // 避开 0xAA
	}
	d := NewStreamDecoder(nil)
	frames := d.Feed(noise)
	if len(frames) != 0 {
		t.Fatalf("noise produced frames")
	}
	if d.Buffered() != 0 {
		t.Errorf("buffered = %d, want 0 after pure noise", d.Buffered())
	}
}

func TestStreamDecoder_LeadingGarbage(t *testing.T) {
	input := append([]byte{0x01, 0x02, 0x03, 0x04, 0x05}, validDataFrame...)
	d := NewStreamDecoder(nil)
	frames := d.Feed(input)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
}

func TestStreamDecoder_MultipleFramesOneFeed(t *testing.T) {
	input := append(append([]byte(nil), validDataFrame...), validDataFrame...)
	d := NewStreamDecoder(nil)
	frames := d.Feed(input)
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
}

func TestStreamDecoder_NonDataFrameDecoded(t *testing.T) {
	// 握手帧也是合法帧，解码器应原样给出，由上层按功能码分流
	hs := BuildHandshake("123456")
	d := NewStreamDecoder(nil)
	frames := d.Feed(hs)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	if frames[0].IsData() {
		t.Error("handshake frame classified as data")
	}
}

func TestStreamDecoder_Reset(t *testing.T) {
	d := NewStreamDecoder(nil)
	d.Feed(validDataFrame[:7]) // 留下半帧
	if d.Buffered() == 0 {
		t.Fatal("expected partial frame in buffer")
	}
	d.Reset()
	if d.Buffered() != 0 {
		t.Errorf("buffered = %d after reset, want 0", d.Buffered())
	}
	if d.State() != StateSearching {
		t.Errorf("state = %d after reset, want searching", d.State())
	}
}

func TestStreamDecoder_PartialFrameInvariant(t *testing.T) {
	// 一次解码后缓冲区只能是空或一个可能的进行中帧前缀
	input := append(append([]byte(nil), validDataFrame...), validDataFrame[:5]...)
	d := NewStreamDecoder(nil)
	frames := d.Feed(input)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	if d.Buffered() != 5 {
		t.Errorf("buffered = %d, want 5 (unconsumed prefix)", d.Buffered())
	}
}
