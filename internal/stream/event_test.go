package stream

import (
	"testing"

	"github.com/quantum-n3bula/console/internal/model"
)

func TestDecodeTaskStarted(t *testing.T) {
	ev, err := Decode([]byte(`{"event":"task_started","task_id":12,"command":"uptime"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task, ok := ev.(TaskEvent)
	if !ok {
		t.Fatalf("expected TaskEvent, got %T", ev)
	}
	if task.TaskID != 12 {
		t.Errorf("expected task_id 12, got %d", task.TaskID)
	}
	if task.Command == nil || *task.Command != "uptime" {
		t.Errorf("expected command carried, got %v", task.Command)
	}
	if task.Status != nil {
		t.Errorf("expected no explicit status, got %v", *task.Status)
	}
	if got := task.EffectiveStatus(); got != model.TaskRunning {
		t.Errorf("expected implied running status, got %s", got)
	}
}

func TestDecodeTaskCompletedExplicitStatus(t *testing.T) {
	ev, err := Decode([]byte(`{"event":"task_completed","task_id":5,"status":"completed","result":"done"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task := ev.(TaskEvent)
	if got := task.EffectiveStatus(); got != model.TaskCompleted {
		t.Errorf("expected completed, got %s", got)
	}
	if task.Result == nil || *task.Result != "done" {
		t.Errorf("expected result carried, got %v", task.Result)
	}
}

func TestDecodeTaskFailedImpliedStatus(t *testing.T) {
	ev, err := Decode([]byte(`{"event":"task_failed","task_id":5,"error":"timeout"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ev.(TaskEvent).EffectiveStatus(); got != model.TaskFailed {
		t.Errorf("expected failed, got %s", got)
	}
}

func TestDecodeLogSparseFrame(t *testing.T) {
	ev, err := Decode([]byte(`{"event":"log","message":"hello"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log, ok := ev.(LogEvent)
	if !ok {
		t.Fatalf("expected LogEvent, got %T", ev)
	}
	if log.Message != "hello" {
		t.Errorf("unexpected message %q", log.Message)
	}
	if log.ID != nil || log.Level != nil || log.Source != nil || log.CreatedAt != nil {
		t.Errorf("expected omitted fields nil, got %+v", log)
	}
}

func TestDecodeUnknownEventLabel(t *testing.T) {
	raw := `{"event":"agent_registered","agent_id":3}`
	ev, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	unknown, ok := ev.(UnknownEvent)
	if !ok {
		t.Fatalf("expected UnknownEvent, got %T", ev)
	}
	if unknown.Name != "agent_registered" {
		t.Errorf("unexpected name %q", unknown.Name)
	}
	if string(unknown.Raw) != raw {
		t.Errorf("expected raw payload kept, got %s", unknown.Raw)
	}
}

func TestDecodeMalformedFrames(t *testing.T) {
	cases := []struct {
		name  string
		frame string
	}{
		{"invalid json", `{not json`},
		{"missing event field", `{"task_id":1}`},
		{"task frame without task_id", `{"event":"task_completed","status":"completed"}`},
		{"empty event label", `{"event":""}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.frame)); err == nil {
				t.Errorf("expected decode error for %s", tc.frame)
			}
		})
	}
}
