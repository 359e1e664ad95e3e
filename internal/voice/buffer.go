package voice

import "sync"

// frameBuffer is a bounded FIFO of encoded frames between the stream reader and
// the paced sender.
type frameBuffer struct {
	mu       sync.Mutex
	frames   [][]byte
	readPos  int
	count    int
	closed   bool
	eos      bool
	notEmpty *sync.Cond
	notFull  *sync.Cond
}

func newFrameBuffer(size int) *frameBuffer {
	fb := &frameBuffer{frames: make([][]byte, size)}
	fb.notEmpty = sync.NewCond(&fb.mu)
	fb.notFull = sync.NewCond(&fb.mu)
	return fb
}

// Push blocks while the buffer is full. It reports false once the buffer is closed
// or marked finished.
func (fb *frameBuffer) Push(frame []byte) bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for fb.count == len(fb.frames) && !fb.closed && !fb.eos {
		fb.notFull.Wait()
	}
	if fb.closed || fb.eos {
		return false
	}
	fb.frames[(fb.readPos+fb.count)%len(fb.frames)] = append([]byte(nil), frame...)
	fb.count++
	fb.notEmpty.Signal()
	return true
}

// Pop blocks until a frame is available. It reports false when the buffer is
// closed, or finished and drained.
func (fb *frameBuffer) Pop() ([]byte, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for {
		if fb.closed {
			return nil, false
		}
		if fb.count > 0 {
			f := fb.frames[fb.readPos]
			fb.frames[fb.readPos] = nil
			fb.readPos = (fb.readPos + 1) % len(fb.frames)
			fb.count--
			fb.notFull.Signal()
			return f, true
		}
		if fb.eos {
			return nil, false
		}
		fb.notEmpty.Wait()
	}
}

func (fb *frameBuffer) Len() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.count
}

// MarkEOS lets Pop drain what is left and then report the end.
func (fb *frameBuffer) MarkEOS() {
	fb.mu.Lock()
	fb.eos = true
	fb.notEmpty.Broadcast()
	fb.notFull.Broadcast()
	fb.mu.Unlock()
}

func (fb *frameBuffer) Close() {
	fb.mu.Lock()
	fb.closed = true
	fb.notEmpty.Broadcast()
	fb.notFull.Broadcast()
	fb.mu.Unlock()
}
