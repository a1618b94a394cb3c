package services

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTaskTypeIntake_Constant(t *testing.T) {
	if TaskTypeIntake != "ticket:intake" {
		t.Errorf("TaskTypeIntake = %q, expected %q", TaskTypeIntake, "ticket:intake")
	}
}

func TestIntakeTask_Structure(t *testing.T) {
	task := IntakeTask{
		TaskID:    "task-1",
		Text:      "the app crashes on save",
		UserID:    "U123",
		ChannelID: "C456",
	}

	if task.TaskID != "task-1" {
		t.Errorf("TaskID = %q, expected %q", task.TaskID, "task-1")
	}
	if task.Text != "the app crashes on save" {
		t.Errorf("Text = %q", task.Text)
	}
	if task.UserID != "U123" {
		t.Errorf("UserID = %q, expected %q", task.UserID, "U123")
	}
	if task.ChannelID != "C456" {
		t.Errorf("ChannelID = %q, expected %q", task.ChannelID, "C456")
	}
}

func TestSyncQueue_New(t *testing.T) {
	queue := NewSyncQueue()
	if queue == nil {
		t.Error("NewSyncQueue should not return nil")
	}
}

func TestSyncQueue_IsAsync(t *testing.T) {
	queue := NewSyncQueue()
	if queue.IsAsync() {
		t.Error("SyncQueue.IsAsync() should return false")
	}
}

func TestSyncQueue_Close(t *testing.T) {
	queue := NewSyncQueue()
	err := queue.Close()
	if err != nil {
		t.Errorf("SyncQueue.Close() should return nil, got %v", err)
	}
}

func TestSyncQueue_EnqueueWithoutProcessor(t *testing.T) {
	queue := NewSyncQueue()
	task := &IntakeTask{TaskID: "task-1"}

	err := queue.Enqueue(task)
	if err != nil {
		t.Errorf("Enqueue without processor should not error, got %v", err)
	}
}

func TestSyncQueue_EnqueueRunsProcessor(t *testing.T) {
	queue := NewSyncQueue()

	var mu sync.Mutex
	var got *IntakeTask
	done := make(chan struct{})

	queue.SetProcessor(func(ctx context.Context, task *IntakeTask) error {
		mu.Lock()
		got = task
		mu.Unlock()
		close(done)
		return nil
	})

	if err := queue.Enqueue(&IntakeTask{TaskID: "task-2", Text: "hello"}); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if got == nil || got.TaskID != "task-2" {
		t.Errorf("processor received %+v", got)
	}
}

func TestAsyncQueue_IsAsync(t *testing.T) {
	queue := &AsyncQueue{}
	if !queue.IsAsync() {
		t.Error("AsyncQueue.IsAsync() should return true")
	}
}
