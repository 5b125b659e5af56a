package passhash

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/creack/pty"
)

// ErrHostBackend means su(1) could not be driven to a verdict.
var ErrHostBackend = errors.New("host auth backend error")

// HostVerifier checks a password by running su(1) behind a PTY, letting the
// host libc handle hash schemes this package cannot derive (classic DES
// salts, yescrypt). BusyBox and shadow-utils su both prompt on the PTY.
type HostVerifier struct {
	// Timeout bounds one su invocation. Zero means 6 seconds.
	Timeout time.Duration
}

// Verify reports whether the host accepts username/password. The error is
// non-nil only when su itself could not be run, not on a wrong password.
func (h *HostVerifier) Verify(username, password string) (bool, error) {
	if strings.TrimSpace(username) == "" {
		return false, nil
	}

	timeout := h.Timeout
	if timeout == 0 {
		timeout = 6 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "su", "-s", "/bin/sh", "-c", "true", username)
	f, err := pty.Start(cmd)
	if err != nil {
		return false, fmt.Errorf("%w: start su: %v", ErrHostBackend, err)
	}
	defer func() { _ = f.Close() }()

	prompted := false
	var out bytes.Buffer
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		br := bufio.NewReader(f)
		buf := make([]byte, 4096)
		for {
			_ = f.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
			n, rerr := br.Read(buf)
			if n > 0 {
				out.Write(buf[:n])
				if !prompted && strings.Contains(strings.ToLower(out.String()), "password") {
					prompted = true
					_, _ = io.WriteString(f, password+"\n")
				}
			}
			if rerr != nil {
				if errors.Is(rerr, os.ErrDeadlineExceeded) && ctx.Err() == nil {
					continue
				}
				return
			}
		}
	}()

	err = cmd.Wait()
	<-readerDone

	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, fmt.Errorf("%w: su timed out", ErrHostBackend)
	}
	return false, nil
}
