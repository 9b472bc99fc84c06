package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

const maxFrameSize = 8 << 20

// FFmpegDevice reads MJPEG frames from an ffmpeg child process. Input is a
// V4L2 device (/dev/video0), an RTSP URL or a video file.
type FFmpegDevice struct {
	Binary string
	Input  string
	Format string
	FPS    int
}

func NewFFmpegDevice(input, format string, fps int) *FFmpegDevice {
	return &FFmpegDevice{Binary: "ffmpeg", Input: input, Format: format, FPS: fps}
}

func (d *FFmpegDevice) args() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if d.Format != "" {
		args = append(args, "-f", d.Format)
	}
	if d.FPS > 0 {
		args = append(args, "-framerate", strconv.Itoa(d.FPS))
	}
	args = append(args, "-i", d.Input, "-f", "image2pipe", "-vcodec", "mjpeg", "-")
	return args
}

// Open starts ffmpeg and waits for the first frame, so a missing or busy
// device fails here rather than on the first read.
func (d *FFmpegDevice) Open(ctx context.Context) (Stream, error) {
	bin, err := exec.LookPath(d.Binary)
	if err != nil {
		return nil, domain.ErrCameraUnavailable.WithError(fmt.Errorf("ffmpeg not found: %w", err))
	}

	cmd := exec.Command(bin, d.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, domain.ErrCameraUnavailable.WithError(fmt.Errorf("stdout pipe: %w", err))
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, domain.ErrCameraUnavailable.WithError(fmt.Errorf("start ffmpeg: %w", err))
	}

	s := newPipeStream(stdout, func() error {
		_ = cmd.Process.Kill()
		return cmd.Wait()
	})

	type result struct {
		frame *domain.Frame
		err   error
	}
	first := make(chan result, 1)
	go func() {
		f, err := s.ReadFrame()
		first <- result{f, err}
	}()

	select {
	case r := <-first:
		if r.err != nil {
			_ = s.Close()
			return nil, domain.ErrCameraUnavailable.WithError(
				fmt.Errorf("open %s: %w (%s)", d.Input, r.err, bytes.TrimSpace(stderr.Bytes())))
		}
		s.pending = r.frame
		return s, nil
	case <-ctx.Done():
		_ = s.Close()
		<-first
		return nil, domain.ErrCameraUnavailable.WithError(ctx.Err())
	}
}

// pipeStream splits a concatenated MJPEG byte stream into frames.
type pipeStream struct {
	scanner *bufio.Scanner
	closeFn func() error
	pending *domain.Frame

	once     sync.Once
	closeErr error
}

func newPipeStream(r io.Reader, closeFn func() error) *pipeStream {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 512*1024), maxFrameSize)
	sc.Split(splitJPEG)
	return &pipeStream{scanner: sc, closeFn: closeFn}
}

func (s *pipeStream) ReadFrame() (*domain.Frame, error) {
	if f := s.pending; f != nil {
		s.pending = nil
		return f, nil
	}

	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, io.EOF) {
			return nil, domain.ErrEndOfStream.WithError(err)
		}
		return nil, domain.ErrEndOfStream
	}

	// the scanner reuses its buffer
	data := bytes.Clone(s.scanner.Bytes())
	return domain.NewFrame(data, time.Now())
}

func (s *pipeStream) Close() error {
	s.once.Do(func() {
		if s.closeFn != nil {
			s.closeErr = s.closeFn()
		}
	})
	return s.closeErr
}

// splitJPEG is a bufio.SplitFunc yielding one JPEG per token, delimited by
// the SOI (FFD8) and EOI (FFD9) markers.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}
