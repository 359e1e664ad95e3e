package voice

import (
	"testing"
	"time"
)

func TestFrameBufferOrderAndEOS(t *testing.T) {
	fb := newFrameBuffer(4)
	for _, b := range []byte{1, 2, 3} {
		if !fb.Push([]byte{b}) {
			t.Fatalf("push %d failed", b)
		}
	}
	fb.MarkEOS()
	if fb.Push([]byte{9}) {
		t.Error("expected push after EOS to fail")
	}

	var got []byte
	for {
		f, ok := fb.Pop()
		if !ok {
			break
		}
		got = append(got, f[0])
	}
	if string(got) != string([]byte{1, 2, 3}) {
		t.Errorf("expected frames 1 2 3, got %v", got)
	}
}

func TestFrameBufferBackpressure(t *testing.T) {
	fb := newFrameBuffer(2)
	fb.Push([]byte{1})
	fb.Push([]byte{2})

	pushed := make(chan bool)
	go func() { pushed <- fb.Push([]byte{3}) }()

	select {
	case <-pushed:
		t.Fatal("expected push into a full buffer to block")
	case <-time.After(30 * time.Millisecond):
	}

	if f, _ := fb.Pop(); f[0] != 1 {
		t.Errorf("expected 1, got %d", f[0])
	}
	if ok := <-pushed; !ok {
		t.Error("expected blocked push to succeed once room was made")
	}
	if fb.Len() != 2 {
		t.Errorf("expected 2 buffered, got %d", fb.Len())
	}
}

func TestFrameBufferCloseUnblocksPop(t *testing.T) {
	fb := newFrameBuffer(2)
	done := make(chan bool)
	go func() {
		_, ok := fb.Pop()
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	fb.Close()
	if ok := <-done; ok {
		t.Error("expected pop on closed buffer to fail")
	}
}
