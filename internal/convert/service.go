// Package convert transcodes uploaded audio files between common formats by
// shelling out to ffmpeg. Conversions run as background tasks tracked in an
// in-memory registry; the UI polls status and progress and fetches the
// result once the task finishes.
package convert

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/downtify/downtify/internal/model"
)

// FFmpeg constants for conversion settings
const (
	FFmpegCommand       = "ffmpeg"
	FFprobeCommand      = "ffprobe"
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=duration"
	FFprobeOutputFormat = "csv=p=0"
	ProgressPipeTarget  = "pipe:2"
	ProgressTimePrefix  = "out_time_us="
	TaskIDPrefix        = "convert-"

	// DefaultTaskTimeout bounds one background conversion
	DefaultTaskTimeout = 15 * time.Minute
)

// Task is one conversion in flight or finished.
type Task struct {
	ID         string
	InputPath  string
	OutputPath string
	Format     string
	Status     model.TaskStatus
	Progress   float64
	LastError  string
	StartedAt  time.Time
	FinishedAt time.Time

	cancel context.CancelFunc
}

// formatArgs maps each supported target format to its codec arguments.
var formatArgs = map[string][]string{
	"mp3":  {"-c:a", "libmp3lame", "-b:a", "192k"},
	"wav":  {"-c:a", "pcm_s16le"},
	"flac": {"-c:a", "flac"},
	"ogg":  {"-c:a", "libvorbis", "-q:a", "5"},
}

// SupportedFormat reports whether format is a valid conversion target.
func SupportedFormat(format string) bool {
	_, ok := formatArgs[strings.ToLower(format)]
	return ok
}

// Formats lists the supported target formats.
func Formats() []string {
	return []string{"mp3", "wav", "flac", "ogg"}
}

// Service handles audio conversion operations
type Service struct {
	outputDir  string
	timeout    time.Duration
	tasks      map[string]*Task
	tasksMutex sync.RWMutex
}

// NewService creates a new conversion service writing into outputDir.
func NewService(outputDir string) *Service {
	return &Service{
		outputDir: outputDir,
		timeout:   DefaultTaskTimeout,
		tasks:     make(map[string]*Task),
	}
}

// GetTask returns a snapshot of a conversion task by ID.
func (s *Service) GetTask(taskID string) (Task, bool) {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()
	task, exists := s.tasks[taskID]
	if !exists {
		return Task{}, false
	}
	return *task, true
}

// Start validates the request, registers a pending task, and launches the
// conversion in the background. Callers read progress and the terminal state
// back through GetTask; partial output is removed on failure.
func (s *Service) Start(inputPath, format string) (Task, error) {
	format = strings.ToLower(format)
	args, ok := formatArgs[format]
	if !ok {
		return Task{}, fmt.Errorf("unsupported target format: %s", format)
	}
	if _, err := os.Stat(inputPath); err != nil {
		return Task{}, fmt.Errorf("input file: %w", err)
	}
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return Task{}, fmt.Errorf("create output directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	task := &Task{
		ID:         generateTaskID(),
		InputPath:  inputPath,
		OutputPath: s.outputPath(inputPath, format),
		Format:     format,
		Status:     model.TaskStatusPending,
		StartedAt:  time.Now(),
		cancel:     cancel,
	}
	s.tasksMutex.Lock()
	s.tasks[task.ID] = task
	s.tasksMutex.Unlock()

	go func() {
		defer cancel()
		err := s.run(ctx, task, args)
		s.finish(ctx, task, err)
	}()

	return *task, nil
}

// Stop cancels an unfinished task. The background goroutine records the
// Stopped state once ffmpeg exits.
func (s *Service) Stop(taskID string) error {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()
	task, exists := s.tasks[taskID]
	if !exists {
		return fmt.Errorf("unknown task %s", taskID)
	}
	if task.Status.IsFinished() {
		return fmt.Errorf("task %s already finished", taskID)
	}
	task.Status = model.TaskStatusStopping
	if task.cancel != nil {
		task.cancel()
	}
	return nil
}

// finish records the terminal state for a task.
func (s *Service) finish(ctx context.Context, task *Task, err error) {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()
	task.FinishedAt = time.Now()

	switch {
	case err == nil:
		task.Status = model.TaskStatusCompleted
		task.Progress = 1.0
	case task.Status == model.TaskStatusStopping, errors.Is(ctx.Err(), context.Canceled):
		task.Status = model.TaskStatusStopped
		task.LastError = err.Error()
		os.Remove(task.OutputPath)
	default:
		task.Status = model.TaskStatusError
		task.LastError = err.Error()
		os.Remove(task.OutputPath)
	}
}

// setStatus advances a task's state. A task already marked Stopping keeps
// that state until the background goroutine records the terminal one.
func (s *Service) setStatus(task *Task, status model.TaskStatus) {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()
	if task.Status == model.TaskStatusStopping {
		return
	}
	task.Status = status
}

// run executes ffmpeg with progress monitoring.
func (s *Service) run(ctx context.Context, task *Task, codecArgs []string) error {
	s.setStatus(task, model.TaskStatusStarting)

	duration, err := s.getAudioDuration(task.InputPath)
	if err != nil {
		// Progress just stays at zero for inputs ffprobe cannot time.
		duration = 0
	}

	args := BuildFFmpegArgs(task.InputPath, task.OutputPath, codecArgs)
	cmd := exec.CommandContext(ctx, FFmpegCommand, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	s.setStatus(task, model.TaskStatusRunning)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	go s.monitorProgress(stderr, task, duration)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

// BuildFFmpegArgs builds the ffmpeg command arguments for one conversion.
func BuildFFmpegArgs(inputPath, outputPath string, codecArgs []string) []string {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
	}
	args = append(args, codecArgs...)
	args = append(args,
		"-progress", ProgressPipeTarget,
		"-nostats",
		outputPath,
	)
	return args
}

// getAudioDuration gets the duration of an audio file using ffprobe
func (s *Service) getAudioDuration(filePath string) (float64, error) {
	cmd := exec.Command(FFprobeCommand, "-v", FFprobeLogLevel, "-show_entries", FFprobeShowEntries, "-of", FFprobeOutputFormat, filePath)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return duration, nil
}

// monitorProgress parses ffmpeg progress output into the task.
func (s *Service) monitorProgress(stderr io.ReadCloser, task *Task, totalDuration float64) {
	defer stderr.Close()
	scanner := bufio.NewScanner(stderr)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, ProgressTimePrefix) {
			continue
		}
		timeMicroseconds, err := strconv.ParseInt(strings.TrimPrefix(line, ProgressTimePrefix), 10, 64)
		if err != nil {
			continue
		}
		if totalDuration <= 0 {
			continue
		}

		progress := (float64(timeMicroseconds) / 1e6) / totalDuration
		if progress > 1.0 {
			progress = 1.0
		}
		s.tasksMutex.Lock()
		task.Progress = progress
		s.tasksMutex.Unlock()
	}
}

// outputPath derives the output filename from the input basename and the
// target format, disambiguated with the task timestamp.
func (s *Service) outputPath(inputPath, format string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	name := fmt.Sprintf("%s_%d.%s", base, time.Now().UnixNano(), format)
	return filepath.Join(s.outputDir, name)
}

// generateTaskID generates a unique task ID using UUID v7 for better uniqueness and time ordering
func generateTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to timestamp if UUID generation fails
		return fmt.Sprintf(TaskIDPrefix+"%d", time.Now().UnixNano())
	}
	return TaskIDPrefix + id.String()
}
