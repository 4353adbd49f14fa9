package message

import (
	"fmt"
	"os"
	"sync"
)

// TempFileContext is an owned scope over on-disk scratch files used to
// decode large message payloads without holding them in memory for the
// lifetime of the upward delivery callback. A receiver worker keeps one
// until a delivered batch has spilled into it, then hands it off to be
// closed after the application has finished processing that batch (see
// socket.receiver) and starts a fresh one; Close deletes every file it
// backs in one pass.
//
// There is no third-party package in the example pack narrow enough to
// cover this (a delete-on-close scratch directory for decoder spillover);
// see DESIGN.md.
type TempFileContext struct {
	mu    sync.Mutex
	files []string
	size  int64
	dir   string
}

// NewTempFileContext creates a TempFileContext rooted in the OS default
// temp directory. Returns an error only if the directory cannot be probed.
func NewTempFileContext() (*TempFileContext, error) {
	dir, err := os.MkdirTemp("", "htduplex-msg-*")
	if err != nil {
		return nil, fmt.Errorf("message: creating temp file context: %w", err)
	}
	return &TempFileContext{dir: dir}, nil
}

// Spill writes data to a new file owned by this context and returns its
// path. Safe for concurrent use.
func (c *TempFileContext) Spill(data []byte) (string, error) {
	f, err := os.CreateTemp(c.dir, "payload-*.bin")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	c.mu.Lock()
	c.files = append(c.files, f.Name())
	c.size += int64(len(data))
	c.mu.Unlock()
	return f.Name(), nil
}

// Size returns the total bytes spilled into this context so far.
func (c *TempFileContext) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Close deletes every file this context has spilled and removes its
// scratch directory. Safe to call once; a second call is a no-op.
func (c *TempFileContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dir == "" {
		return nil
	}
	err := os.RemoveAll(c.dir)
	c.dir = ""
	c.files = nil
	return err
}
