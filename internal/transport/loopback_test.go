package transport

import (
	"bytes"
	"io"
	"testing"
	"time"
)

func TestLoopback_InjectRead(t *testing.T) {
	l := NewLoopback(64)
	defer l.Close()

	data := []byte{0xAA, 0x01, 0x02}
	if _, err := l.Inject(data); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 16)
	n, err := l.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[:n], data) {
		t.Errorf("read % 02X, want % 02X", buf[:n], data)
	}
}

func TestLoopback_WriteCaptured(t *testing.T) {
	l := NewLoopback(64)
	defer l.Close()

	if _, err := l.Write([]byte{0xB0, 0xB0}); err != nil {
		t.Fatal(err)
	}
	if got := l.Sent(); !bytes.Equal(got, []byte{0xB0, 0xB0}) {
		t.Errorf("sent = % 02X", got)
	}
}

func TestLoopback_CloseReleasesRead(t *testing.T) {
	l := NewLoopback(64)

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 8)
		_, err := l.Read(buf)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	l.Close()

	select {
	case err := <-done:
		if err != io.EOF {
			t.Errorf("read after close = %v, want io.EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("close did not release pending read")
	}
}

func TestLoopback_WriteAfterClose(t *testing.T) {
	l := NewLoopback(64)
	l.Close()
	if _, err := l.Write([]byte{0x01}); err != io.ErrClosedPipe {
		t.Errorf("write after close = %v, want ErrClosedPipe", err)
	}
	if _, err := l.Inject([]byte{0x01}); err != io.ErrClosedPipe {
		t.Errorf("inject after close = %v, want ErrClosedPipe", err)
	}
}
