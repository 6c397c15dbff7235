// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package decoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	"github.com/verisource/verisource-api-production-sub000/pkg/logging"
	"github.com/verisource/verisource-api-production-sub000/pkg/recipe"
)

// DefaultFFmpegPath is the binary looked up on PATH when none is configured.
const DefaultFFmpegPath = "ffmpeg"

// stderrTail is how much ffmpeg diagnostic output is kept for error messages.
const stderrTail = 2048

// FFmpeg decodes video by running an ffmpeg subprocess per stream.
type FFmpeg struct {
	// Path is the ffmpeg binary.
	Path string
	// TempDir is the parent of the per-stream scratch directories.
	TempDir string
	Logger  logging.Logger
}

var _ Decoder = (*FFmpeg)(nil)

// NewFFmpeg returns a decoder using the binary at path.
func NewFFmpeg(path string, logger logging.Logger) *FFmpeg {
	if path == "" {
		path = DefaultFFmpegPath
	}
	return &FFmpeg{Path: path, Logger: logging.EnsureLogger(logger)}
}

// FilterGraph returns the video filter chain implementing the spatial and
// colour steps of params. showinfo must stay last so that the reported
// geometry is the geometry written to the pipe.
func FilterGraph(params recipe.VideoParams) string {
	edge := params.MaxEdge
	scale := fmt.Sprintf(
		"scale=w='if(gte(iw,ih),min(%d,iw),-1)':h='if(gte(iw,ih),-1,min(%d,ih))'"+
			":flags=lanczos+accurate_rnd+full_chroma_int:param0=3"+
			":in_range=auto:out_range=%s:out_color_matrix=%s",
		edge, edge, params.Range, params.Matrix)

	return strings.Join([]string{
		params.Deinterlace + "=mode=send_frame:parity=auto:deint=all",
		scale,
		"format=" + params.PixelFormat,
		"showinfo",
	}, ",")
}

// Args returns the ffmpeg command line for decoding inputPath.
func Args(inputPath string, params recipe.VideoParams) []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "info",
		"-threads", "1",
		"-i", inputPath,
		"-map", "0:v:0", "-an", "-sn", "-dn",
		"-filter_threads", "1",
		"-vf", FilterGraph(params),
		"-fps_mode", "passthrough",
		"-f", "rawvideo", "-pix_fmt", params.PixelFormat,
		"pipe:1",
	}
}

// Open writes input to a private scratch directory and starts ffmpeg on it.
func (f *FFmpeg) Open(ctx context.Context, input []byte, params recipe.VideoParams) (Stream, error) {
	if len(input) == 0 {
		return nil, failure.New(failure.KindDecode, "decode", "empty input")
	}
	if params.PixelFormat != "rgb24" {
		return nil, failure.Newf(failure.KindUnsupportedRecipe, "decode",
			"pixel format %q is not supported", params.PixelFormat)
	}

	dir, err := os.MkdirTemp(f.TempDir, "media-provenance-*")
	if err != nil {
		return nil, failure.Wrap(failure.KindDecode, "decode", "creating scratch directory", err)
	}
	inputPath := filepath.Join(dir, "input")
	if err := os.WriteFile(inputPath, input, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, failure.Wrap(failure.KindDecode, "decode", "writing scratch input", err)
	}

	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, f.Path, Args(inputPath, params)...)
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		_ = os.RemoveAll(dir)
		return nil, failure.Wrap(failure.KindDecode, "decode", "creating stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		_ = os.RemoveAll(dir)
		return nil, failure.Wrap(failure.KindDecode, "decode", "creating stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		_ = os.RemoveAll(dir)
		return nil, failure.Wrap(failure.KindDecode, "decode", "starting ffmpeg", err)
	}

	f.Logger.WithField("dir", dir).Debug("ffmpeg started with pid %d", cmd.Process.Pid)

	s := &ffmpegStream{
		cmd:    cmd,
		cancel: cancel,
		dir:    dir,
		stdout: bufio.NewReaderSize(stdout, 1<<20),
		infos:  make(chan frameInfo, 64),
		logger: f.Logger,
	}
	s.stderrDone = make(chan struct{})
	go s.scanStderr(stderr)
	return s, nil
}

type frameInfo struct {
	pts    time.Duration
	width  int
	height int
	err    error
}

type ffmpegStream struct {
	cmd        *exec.Cmd
	cancel     context.CancelFunc
	dir        string
	stdout     *bufio.Reader
	infos      chan frameInfo
	stderrDone chan struct{}
	logger     logging.Logger

	mu   sync.Mutex
	tail bytes.Buffer

	closeOnce sync.Once
	closeErr  error
	finished  bool
}

var showinfoPattern = regexp.MustCompile(`\bn:\s*\d+\s+pts:\s*-?\d+\s+pts_time:(\S+).*\bs:(\d+)x(\d+)`)

func (s *ffmpegStream) scanStderr(r io.Reader) {
	defer close(s.stderrDone)
	defer close(s.infos)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		m := showinfoPattern.FindStringSubmatch(line)
		if m == nil {
			s.remember(line)
			continue
		}
		info := frameInfo{}
		info.pts, info.err = ParseTimestamp(m[1])
		info.width, _ = strconv.Atoi(m[2])
		info.height, _ = strconv.Atoi(m[3])
		s.infos <- info
	}
}

func (s *ffmpegStream) remember(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tail.WriteString(line)
	s.tail.WriteByte('\n')
	if over := s.tail.Len() - stderrTail; over > 0 {
		s.tail.Next(over)
	}
}

func (s *ffmpegStream) diagnostics() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.tail.String())
}

// Next reads the geometry reported by showinfo, then the matching pixels.
func (s *ffmpegStream) Next(ctx context.Context) (RawFrame, error) {
	if err := failure.FromContext(ctx, "decode"); err != nil {
		return RawFrame{}, err
	}
	if s.finished {
		return RawFrame{}, io.EOF
	}

	info, ok := <-s.infos
	if !ok {
		return RawFrame{}, s.finish(ctx)
	}
	if info.err != nil {
		return RawFrame{}, failure.Wrap(failure.KindDecode, "decode", "unreadable frame timestamp", info.err)
	}
	if info.width <= 0 || info.height <= 0 {
		return RawFrame{}, failure.Newf(failure.KindDecode, "decode",
			"decoder reported degenerate frame %dx%d", info.width, info.height)
	}

	pix := make([]byte, info.width*info.height*3)
	if _, err := io.ReadFull(s.stdout, pix); err != nil {
		if cerr := failure.FromContext(ctx, "decode"); cerr != nil {
			return RawFrame{}, cerr
		}
		return RawFrame{}, failure.Wrap(failure.KindDecode, "decode",
			"truncated frame data: "+s.diagnostics(), err)
	}
	return RawFrame{PTS: info.pts, Width: info.width, Height: info.height, Pix: pix}, nil
}

// finish waits for ffmpeg after its last frame and maps its exit status.
func (s *ffmpegStream) finish(ctx context.Context) error {
	s.finished = true
	// drain anything showinfo did not account for
	_, _ = io.Copy(io.Discard, s.stdout)
	err := s.cmd.Wait()
	if cerr := failure.FromContext(ctx, "decode"); cerr != nil {
		return cerr
	}
	if err != nil {
		return failure.Wrap(failure.KindDecode, "decode", "ffmpeg failed: "+s.diagnostics(), err)
	}
	return io.EOF
}

// Close kills ffmpeg if it is still running and removes the scratch directory.
func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if !s.finished {
			s.finished = true
			_ = s.cmd.Wait()
		}
		for range s.infos {
		}
		<-s.stderrDone
		if err := os.RemoveAll(s.dir); err != nil {
			s.closeErr = fmt.Errorf("removing scratch directory: %w", err)
		}
		s.logger.WithField("dir", s.dir).Debugln("decode stream closed")
	})
	return s.closeErr
}

// ParseTimestamp parses a decimal seconds value such as "1.0333667" into a
// duration truncated to the microsecond, without going through float64.
func ParseTimestamp(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, errors.New("empty timestamp")
	}
	if whole == "" {
		whole = "0"
	}
	sec, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	if len(frac) > 6 {
		frac = frac[:6]
	}
	frac += strings.Repeat("0", 6-len(frac))
	us, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	d := time.Duration(sec)*time.Second + time.Duration(us)*time.Microsecond
	if neg {
		d = -d
	}
	return d, nil
}
