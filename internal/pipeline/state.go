package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gnzdotmx/meetscribe/internal/modules/preprocess"
	"github.com/gnzdotmx/meetscribe/internal/transcript"
)

// RunStatus represents the current status of a pipeline run
type RunStatus string

const (
	RunStatusPending  RunStatus = "pending"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Stage names used in run events
const (
	StagePreprocess = "preprocess"
	StagePlan       = "plan"
	StageTranscribe = "transcribe"
	StageMerge      = "merge"
)

// Event types
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventSkipped   = "skipped"
)

// RunEvent represents something that happened during a run
type RunEvent struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	Stage      string                 `json:"stage"`
	ChunkIndex int                    `json:"chunkIndex"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// RunState represents the state of one pipeline run
type RunState struct {
	sync.RWMutex // Protects all fields below

	ID              string
	SessionID       string
	Filename        string
	StartTime       time.Time
	EndTime         time.Time
	Status          RunStatus
	CurrentStage    string
	TotalChunks     int
	CompletedChunks int
	Preprocessing   *preprocess.Result
	Transcript      *transcript.Merged
	History         []RunEvent
}

func newRunState(sessionID, filename string) *RunState {
	return &RunState{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Filename:  filename,
		StartTime: time.Now(),
		Status:    RunStatusRunning,
		History:   make([]RunEvent, 0),
	}
}

// AddEvent adds an event to the run history in a thread-safe manner
func (s *RunState) AddEvent(stage string, chunkIndex int, eventType, message string, data map[string]interface{}) {
	s.Lock()
	defer s.Unlock()
	s.CurrentStage = stage
	s.History = append(s.History, RunEvent{
		ID:         uuid.New().String(),
		Timestamp:  time.Now(),
		Stage:      stage,
		ChunkIndex: chunkIndex,
		Type:       eventType,
		Message:    message,
		Data:       data,
	})
}

// chunkDone records a completed chunk and returns the completed count
func (s *RunState) chunkDone() int {
	s.Lock()
	defer s.Unlock()
	s.CompletedChunks++
	return s.CompletedChunks
}

// finish marks the run as complete or failed
func (s *RunState) finish(status RunStatus) {
	s.Lock()
	defer s.Unlock()
	s.Status = status
	s.EndTime = time.Now()
}

// GetStatus gets the run status in a thread-safe manner
func (s *RunState) GetStatus() RunStatus {
	s.RLock()
	defer s.RUnlock()
	return s.Status
}

// Events returns a copy of the run history
func (s *RunState) Events() []RunEvent {
	s.RLock()
	defer s.RUnlock()
	out := make([]RunEvent, len(s.History))
	copy(out, s.History)
	return out
}

// Duration returns how long the run took, or has taken so far
func (s *RunState) Duration() time.Duration {
	s.RLock()
	defer s.RUnlock()
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}
