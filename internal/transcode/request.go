package transcode

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"toolbox/internal/fileutil"
)

// Operation names one of the encoder tools.
type Operation string

const (
	OpLoop         Operation = "loop"
	OpReverse      Operation = "reverse"
	OpExtractAudio Operation = "extract-audio"
	OpOverlayAudio Operation = "overlay-audio"
)

// Operations lists every supported operation.
var Operations = []Operation{OpLoop, OpReverse, OpExtractAudio, OpOverlayAudio}

// LoopMode selects how a loop request is bounded.
type LoopMode string

const (
	LoopByDuration LoopMode = "duration"
	LoopByCount    LoopMode = "loops"
)

// Request describes one encoder run. Output is derived from Input when empty.
type Request struct {
	Op        Operation `json:"op"`
	Input     string    `json:"input"`
	Audio     string    `json:"audio,omitempty"`
	Output    string    `json:"output,omitempty"`
	Mode      LoopMode  `json:"mode,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	LoopCount int       `json:"loop_count,omitempty"`
}

// Plan is a validated request ready to launch.
type Plan struct {
	Op       Operation
	Input    string
	Audio    string
	Output   string
	Mode     LoopMode
	Duration time.Duration
	Args     []string
}

var durationPattern = regexp.MustCompile(`^(?:(\d+):)?([0-5]?\d):([0-5]\d)$`)

// ParseDuration accepts HH:MM:SS, MM:SS, or plain seconds and rejects zero.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalid("duration required (for example 03:00:00 or 1:30)")
	}
	var total time.Duration
	if secs, err := strconv.Atoi(raw); err == nil {
		total = time.Duration(secs) * time.Second
	} else {
		m := durationPattern.FindStringSubmatch(raw)
		if m == nil {
			return 0, invalid("malformed duration %q (expected HH:MM:SS or MM:SS)", raw)
		}
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		seconds, _ := strconv.Atoi(m[3])
		total = time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	}
	if total <= 0 {
		return 0, invalid("duration %q must be greater than zero", raw)
	}
	return total, nil
}

// DefaultOutput returns the output path used when a request omits one.
func DefaultOutput(op Operation, input string) string {
	base := fileutil.TrimExt(input)
	ext := filepath.Ext(input)
	switch op {
	case OpLoop:
		return base + "_loop" + ext
	case OpReverse:
		return base + "_reversed" + ext
	case OpExtractAudio:
		return base + ".wav"
	case OpOverlayAudio:
		return base + "_with_audio.mp4"
	default:
		return ""
	}
}

// Validate checks req and builds the ffmpeg argument list. Inputs must exist
// as regular files; nothing is launched here.
func Validate(req Request) (Plan, error) {
	plan := Plan{
		Op:    Operation(strings.ToLower(strings.TrimSpace(string(req.Op)))),
		Input: strings.TrimSpace(req.Input),
		Audio: strings.TrimSpace(req.Audio),
	}
	switch plan.Op {
	case OpLoop, OpReverse, OpExtractAudio, OpOverlayAudio:
	default:
		return Plan{}, invalid("unknown operation %q", req.Op)
	}
	if plan.Input == "" {
		return Plan{}, invalid("input path required")
	}
	if err := requireFile("input", plan.Input); err != nil {
		return Plan{}, err
	}
	if plan.Op == OpOverlayAudio {
		if plan.Audio == "" {
			return Plan{}, invalid("audio path required for %s", plan.Op)
		}
		if err := requireFile("audio", plan.Audio); err != nil {
			return Plan{}, err
		}
	}
	if plan.Op == OpLoop {
		plan.Mode = LoopMode(strings.ToLower(strings.TrimSpace(string(req.Mode))))
		switch plan.Mode {
		case LoopByDuration:
			d, err := ParseDuration(req.Duration)
			if err != nil {
				return Plan{}, err
			}
			plan.Duration = d
		case LoopByCount:
			if req.LoopCount < 1 {
				return Plan{}, invalid("loop count must be at least 1, got %d", req.LoopCount)
			}
		default:
			return Plan{}, invalid("unknown loop mode %q (expected duration or loops)", req.Mode)
		}
	}

	plan.Output = strings.TrimSpace(req.Output)
	if plan.Output == "" {
		plan.Output = DefaultOutput(plan.Op, plan.Input)
	}
	if samePath(plan.Output, plan.Input) || (plan.Audio != "" && samePath(plan.Output, plan.Audio)) {
		return Plan{}, invalid("output %q would overwrite an input", plan.Output)
	}

	plan.Args = buildArgs(plan, req, true)
	return plan, nil
}

func requireFile(label, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return invalid("%s %q: %v", label, path, err)
	}
	if !info.Mode().IsRegular() {
		return invalid("%s %q is not a file", label, path)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func buildArgs(plan Plan, req Request, withAudio bool) []string {
	args := []string{"-hide_banner", "-nostdin", "-y"}
	switch plan.Op {
	case OpLoop:
		if plan.Mode == LoopByDuration {
			args = append(args, "-stream_loop", "-1", "-i", plan.Input, "-t", strings.TrimSpace(req.Duration))
		} else {
			args = append(args, "-stream_loop", strconv.Itoa(req.LoopCount-1), "-i", plan.Input)
		}
		args = append(args, "-c", "copy")
	case OpReverse:
		args = append(args, "-i", plan.Input, "-vf", "reverse")
		if withAudio {
			args = append(args, "-af", "areverse")
		} else {
			args = append(args, "-an")
		}
	case OpExtractAudio:
		args = append(args, "-i", plan.Input, "-vn", "-acodec", "pcm_s16le")
	case OpOverlayAudio:
		args = append(args,
			"-i", plan.Input,
			"-i", plan.Audio,
			"-map", "0:v:0",
			"-map", "1:a:0",
			"-c:v", "copy",
			"-c:a", "aac",
			"-shortest",
		)
	}
	return append(args, plan.Output)
}
