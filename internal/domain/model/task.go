package model

import (
	"fmt"
	"strings"
	"time"

	"genmedia-studio/internal/domain"
)

// Kind selects which remote generation endpoint a task was created through.
type Kind string

const (
	KindTextToVideo  Kind = "text-to-video"
	KindImageToVideo Kind = "image-to-video"
	KindImageToImage Kind = "image-to-image"
)

func (k Kind) Valid() bool {
	switch k {
	case KindTextToVideo, KindImageToVideo, KindImageToImage:
		return true
	}
	return false
}

func (k Kind) IsVideo() bool { return k == KindTextToVideo || k == KindImageToVideo }

// ParseKind accepts the canonical kind names.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", domain.Validationf("unknown task kind %q", s)
	}
	return k, nil
}

// Remote statuses plus the local-only display states.
const (
	StatusQueued         = "QUEUED"
	StatusRunning        = "RUNNING"
	StatusSuccess        = "SUCCESS"
	StatusFailed         = "FAILED"
	StatusFetchingResult = "fetching result"
	StatusRetrying       = "retrying after network interruption"
)

func IsTerminalStatus(s string) bool { return s == StatusSuccess || s == StatusFailed }

// Usage is the billing snapshot attached to a successful task.
type Usage struct {
	ConsumeMoney string `json:"consumeMoney,omitempty"`
	ConsumeCoins string `json:"consumeCoins,omitempty"`
	TaskCostTime string `json:"taskCostTime,omitempty"`
}

// Task tracks one remote generation job.
type Task struct {
	TaskID string `json:"taskId"`
	Kind   Kind   `json:"kind"`
	Status string `json:"status"`
	GenerationParams
	Progress      int       `json:"progress"`
	ResultURL     string    `json:"resultUrl,omitempty"`
	PreviewURL    string    `json:"previewUrl,omitempty"`
	RetryCount    int       `json:"retryCount"`
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	Usage         *Usage    `json:"usage,omitempty"`
}

// NewTask builds the record for a freshly created job. Only QUEUED is kept
// as initial status; anything else starts as RUNNING and is settled by polling.
func NewTask(taskID string, kind Kind, params GenerationParams, initialStatus string, now time.Time) (*Task, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, domain.Validationf("task id is required")
	}
	if !kind.Valid() {
		return nil, domain.Validationf("unknown task kind %q", kind)
	}
	status := StatusRunning
	if strings.EqualFold(strings.TrimSpace(initialStatus), StatusQueued) {
		status = StatusQueued
	}
	return &Task{
		TaskID:           taskID,
		Kind:             kind,
		Status:           status,
		GenerationParams: params.Copy(),
		CreatedAt:        now.UTC(),
	}, nil
}

func (t Task) Key() string        { return t.TaskID }
func (t Task) Created() time.Time { return t.CreatedAt }
func (t Task) IsTerminal() bool   { return IsTerminalStatus(t.Status) }

func (t Task) String() string {
	return fmt.Sprintf("%s[%s %s %d%%]", t.TaskID, t.Kind, t.Status, t.Progress)
}

// Draft is an editable copy of a task's inputs, produced by cloning.
type Draft struct {
	Kind Kind `json:"kind"`
	GenerationParams
}

// Clone copies the task's inputs into a new draft. The task is not touched.
func (t Task) Clone() Draft {
	return Draft{Kind: t.Kind, GenerationParams: t.GenerationParams.Copy()}
}
