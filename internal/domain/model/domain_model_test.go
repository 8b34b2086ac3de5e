//go:build !integration

package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"genmedia-studio/internal/domain"
)

// --- Task Tests ---

func TestNewTask(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("defaults missing status to RUNNING", func(t *testing.T) {
		task, err := NewTask("abc", KindTextToVideo, GenerationParams{Prompt: "a cat"}, "", now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if task.Status != StatusRunning {
			t.Errorf("expected RUNNING, got %s", task.Status)
		}
		if !task.CreatedAt.Equal(now) {
			t.Errorf("unexpected createdAt %v", task.CreatedAt)
		}
	})

	t.Run("keeps QUEUED", func(t *testing.T) {
		task, err := NewTask("abc", KindTextToVideo, GenerationParams{Prompt: "a cat"}, "queued", now)
		if err != nil {
			t.Fatal(err)
		}
		if task.Status != StatusQueued {
			t.Errorf("expected QUEUED, got %s", task.Status)
		}
	})

	t.Run("rejects empty id", func(t *testing.T) {
		_, err := NewTask(" ", KindTextToVideo, GenerationParams{}, "", now)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("copies image urls", func(t *testing.T) {
		urls := []string{"https://x/a.png"}
		task, _ := NewTask("abc", KindImageToVideo, GenerationParams{ImageURLs: urls}, "", now)
		urls[0] = "changed"
		if task.ImageURLs[0] != "https://x/a.png" {
			t.Error("task shares the caller's slice")
		}
	})
}

func TestTaskApply(t *testing.T) {
	base := Task{TaskID: "1", Kind: KindTextToVideo, Status: StatusRunning, Progress: 40}

	t.Run("success sets progress 100 and result", func(t *testing.T) {
		got := base.Apply(Succeeded{ResultURL: "https://r/1.mp4", Usage: &Usage{ConsumeCoins: "10"}})
		if got.Status != StatusSuccess || got.Progress != 100 || got.ResultURL != "https://r/1.mp4" {
			t.Errorf("unexpected task %+v", got)
		}
		if got.Usage == nil || got.Usage.ConsumeCoins != "10" {
			t.Errorf("usage not copied: %+v", got.Usage)
		}
	})

	t.Run("failure sets progress 0 and reason", func(t *testing.T) {
		got := base.Apply(Failed{Reason: "boom"})
		if got.Status != StatusFailed || got.Progress != 0 || got.FailureReason != "boom" {
			t.Errorf("unexpected task %+v", got)
		}
	})

	t.Run("terminal tasks never change", func(t *testing.T) {
		done := base.Apply(Succeeded{ResultURL: "u"})
		again := done.Apply(Failed{Reason: "late"})
		if again.Status != StatusSuccess || again.FailureReason != "" {
			t.Errorf("terminal task changed: %+v", again)
		}
		failed := base.Apply(Failed{Reason: "x"})
		if failed.Apply(Running{}).Status != StatusFailed {
			t.Error("failed task left terminal state")
		}
	})

	t.Run("retrying records attempt", func(t *testing.T) {
		got := base.Apply(Retrying{Attempt: 2})
		if got.Status != StatusRetrying || got.RetryCount != 2 {
			t.Errorf("unexpected task %+v", got)
		}
		if got.Apply(Running{}).RetryCount != 0 {
			t.Error("retry count not reset after a successful query")
		}
	})

	t.Run("fetching result raises progress to 99", func(t *testing.T) {
		got := base.Apply(FetchingResult{Attempt: 1})
		if got.Status != StatusFetchingResult || got.Progress != 99 {
			t.Errorf("unexpected task %+v", got)
		}
	})
}

func TestClone(t *testing.T) {
	task := Task{TaskID: "1", Kind: KindImageToImage, GenerationParams: GenerationParams{
		Prompt: "make it blue", ImageURLs: []string{"https://x/1.png"}, AspectRatio: "1:1",
	}}
	d := task.Clone()
	d.ImageURLs[0] = "other"
	if task.ImageURLs[0] != "https://x/1.png" {
		t.Error("clone shares image slice with the task")
	}
	if d.Kind != KindImageToImage || d.Prompt != "make it blue" || d.AspectRatio != "1:1" {
		t.Errorf("unexpected draft %+v", d)
	}
}

// --- Params Tests ---

func TestParamsValidate(t *testing.T) {
	img := []string{"https://cdn.example.com/a.png"}
	cases := []struct {
		name string
		kind Kind
		p    GenerationParams
		ok   bool
		msg  string
	}{
		{"text ok", KindTextToVideo, GenerationParams{Prompt: "a cat in the rain"}, true, ""},
		{"text short prompt", KindTextToVideo, GenerationParams{Prompt: "cat"}, false, "at least 5"},
		{"text empty prompt", KindTextToVideo, GenerationParams{Prompt: "   "}, false, "required"},
		{"text long prompt", KindTextToVideo, GenerationParams{Prompt: strings.Repeat("a", 4001)}, false, "exceeds"},
		{"text bad duration", KindTextToVideo, GenerationParams{Prompt: "a cat in the rain", Duration: "20"}, false, "duration"},
		{"image video ok", KindImageToVideo, GenerationParams{ImageURLs: img}, true, ""},
		{"image video no image", KindImageToVideo, GenerationParams{Prompt: "hello"}, false, "image"},
		{"edit ok", KindImageToImage, GenerationParams{Prompt: "make it blue", ImageURLs: img, AspectRatio: "1:1"}, true, ""},
		{"edit too many", KindImageToImage, GenerationParams{Prompt: "make it blue", ImageURLs: make11(img[0])}, false, "at most 10"},
		{"edit bad url", KindImageToImage, GenerationParams{Prompt: "make it blue", ImageURLs: []string{"not a url"}}, false, "invalid image"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.WithDefaults(tc.kind).Validate(tc.kind)
			if tc.ok {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Errorf("expected %q in %q", tc.msg, err.Error())
			}
		})
	}
}

func make11(u string) []string {
	out := make([]string, 11)
	for i := range out {
		out[i] = u
	}
	return out
}

func TestWithDefaults(t *testing.T) {
	p := GenerationParams{Prompt: "  hi there  "}.WithDefaults(KindTextToVideo)
	if p.Duration != "10" || p.AspectRatio != "9:16" || p.Prompt != "hi there" {
		t.Errorf("unexpected defaults %+v", p)
	}
	e := GenerationParams{Prompt: "x"}.WithDefaults(KindImageToImage)
	if e.Duration != "" || e.AspectRatio != "" {
		t.Errorf("image edits take no video defaults: %+v", e)
	}
}

// --- Credential / Settings / Prompt Tests ---

func TestValidateCredential(t *testing.T) {
	if err := ValidateCredential(strings.Repeat("k", 32)); err != nil {
		t.Errorf("expected valid key, got %v", err)
	}
	for _, k := range []string{"", "short", strings.Repeat("k", 33)} {
		if err := ValidateCredential(k); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("key %q: expected ErrValidation, got %v", k, err)
		}
	}
}

func TestSettingsValidate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if err := (Settings{MaxConcurrent: 0}).Validate(); err == nil {
		t.Error("expected error for zero concurrency")
	}
}

func TestNewSavedPrompt(t *testing.T) {
	now := time.Now()
	p, err := NewSavedPrompt("", KindTextToVideo, GenerationParams{Prompt: "a very long prompt about a dog running"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.ID) != 26 {
		t.Errorf("expected a ulid, got %q", p.ID)
	}
	if !strings.HasSuffix(p.Name, "...") {
		t.Errorf("expected summarized name, got %q", p.Name)
	}
	if _, err := NewSavedPrompt("x", KindTextToVideo, GenerationParams{Prompt: "no"}, now); err == nil {
		t.Error("expected validation error")
	}
}
