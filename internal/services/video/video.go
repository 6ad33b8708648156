package video

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

var (
	// ErrOpenVideo is returned when an input video cannot be opened.
	ErrOpenVideo = errors.New("could not open video")
	// ErrOpenWriter is returned when an output video cannot be created.
	ErrOpenWriter = errors.New("could not open video writer")
)

// FrameSource yields frames in order. Read returns false once the sequence
// is exhausted.
type FrameSource interface {
	Read(frame *gocv.Mat) bool
	FPS() float64
	Width() int
	Height() int
	Close() error
}

// FrameSink consumes frames in order.
type FrameSink interface {
	Write(frame gocv.Mat) error
	Close() error
}

// Source is a file-backed FrameSource
type Source struct {
	path   string
	cap    *gocv.VideoCapture
	fps    float64
	width  int
	height int
}

// OpenSource opens a video file for sequential reads. It fails fast if the
// file cannot be opened.
func OpenSource(path string) (*Source, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenVideo, path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpenVideo, path)
	}

	return &Source{
		path:   path,
		cap:    cap,
		fps:    cap.Get(gocv.VideoCaptureFPS),
		width:  int(cap.Get(gocv.VideoCaptureFrameWidth)),
		height: int(cap.Get(gocv.VideoCaptureFrameHeight)),
	}, nil
}

// Read reads the next frame into frame. An empty frame ends the sequence.
func (s *Source) Read(frame *gocv.Mat) bool {
	if ok := s.cap.Read(frame); !ok {
		return false
	}
	return !frame.Empty()
}

func (s *Source) FPS() float64 { return s.fps }
func (s *Source) Width() int   { return s.width }
func (s *Source) Height() int  { return s.height }
func (s *Source) Close() error { return s.cap.Close() }

// Sink is a file-backed FrameSink
type Sink struct {
	path   string
	writer *gocv.VideoWriter
}

// CreateSink creates an output video with the given codec, frame rate and
// pixel dimensions. The parent directory is created if missing.
func CreateSink(path, codec string, fps float64, width, height int) (*Sink, error) {
	if err := EnsureDir(path); err != nil {
		return nil, err
	}

	writer, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenWriter, path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpenWriter, path)
	}

	return &Sink{path: path, writer: writer}, nil
}

// CreateSinkLike creates a sink matching the source's frame rate and size.
func CreateSinkLike(path, codec string, src FrameSource) (*Sink, error) {
	return CreateSink(path, codec, src.FPS(), src.Width(), src.Height())
}

func (s *Sink) Write(frame gocv.Mat) error {
	if err := s.writer.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame to %s: %w", s.path, err)
	}
	return nil
}

func (s *Sink) Close() error { return s.writer.Close() }

// EnsureDir creates the parent directory of path. It is idempotent.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return nil
}

// ForEachFrame reads src until exhaustion, calling fn with the frame index
// and frame. The frame Mat is reused between calls. It returns the number of
// frames processed.
func ForEachFrame(src FrameSource, logger zerolog.Logger, progressEvery int, fn func(idx int, frame gocv.Mat) error) (int, error) {
	img := gocv.NewMat()
	defer img.Close()

	frameIdx := 0
	for src.Read(&img) {
		if err := fn(frameIdx, img); err != nil {
			return frameIdx, fmt.Errorf("frame %d: %w", frameIdx, err)
		}

		frameIdx++
		if progressEvery > 0 && frameIdx%progressEvery == 0 {
			logger.Info().Int("frames", frameIdx).Msg("Processed frames")
		}
	}

	return frameIdx, nil
}
