package domain

import (
	"reflect"
	"testing"
	"time"
)

func TestImportRunDuration(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run := ImportRun{Status: RunRunning, StartedAt: start}
	if run.Duration() != 0 || run.Done() {
		t.Fatalf("running import reported duration %s, done %v", run.Duration(), run.Done())
	}

	end := start.Add(90 * time.Second)
	run.FinishedAt = &end
	run.Status = RunSucceeded
	if run.Duration() != 90*time.Second || !run.Done() {
		t.Fatalf("finished import reported duration %s, done %v", run.Duration(), run.Done())
	}
}

func TestPatternListNormalizes(t *testing.T) {
	list := PatternList{"^route", " ^inetnum", "", "^route"}
	raw, err := list.Value()
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if string(raw.([]byte)) != `["^inetnum","^route"]` {
		t.Fatalf("Value stored %s", raw)
	}

	var back PatternList
	if err := back.Scan(raw); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if !reflect.DeepEqual(back, PatternList{"^inetnum", "^route"}) {
		t.Fatalf("Scan returned %v", back)
	}

	if err := back.Scan(`not json`); err == nil {
		t.Fatal("expected error scanning malformed JSON")
	}
	if err := back.Scan(42); err == nil {
		t.Fatal("expected error scanning an int")
	}
	if err := back.Scan(nil); err != nil || back != nil {
		t.Fatalf("Scan(nil) = %v, %v", back, err)
	}

	empty, _ := PatternList(nil).Value()
	if string(empty.([]byte)) != "[]" {
		t.Fatalf("empty list stored as %s", empty)
	}
}
