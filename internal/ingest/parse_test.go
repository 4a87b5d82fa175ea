package ingest

import (
	"testing"

	"github.com/aiutrace/analyzer/internal/tracevent"
)

func TestParseEventsBareArray(t *testing.T) {
	data := []byte(`[
		{"ph":"X","name":"Cmpt Exec","cat":"kernel","ts":100,"dur":5,"pid":1,"tid":2,"args":{"TS1":"0x10","TS2":"0x20"}},
		{"ph":"X","name":"DmaI Transfer","ts":106,"dur":2,"pid":1,"tid":3}
	]`)

	events, err := ParseEvents(data)
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	first := events[0]
	if first.Name != "Cmpt Exec" || first.Cat != "kernel" || first.Ts != 100 || first.Dur != 5 {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if got := first.ArgString("TS1"); got != "0x10" {
		t.Fatalf("args.TS1 = %q, want 0x10", got)
	}

	second := events[1]
	if second.Pid != 1 || second.Tid != 3 {
		t.Fatalf("unexpected second event: %+v", second)
	}
}

func TestParseEventsWrappedObject(t *testing.T) {
	data := []byte(`{"traceEvents":[{"ph":"M","name":"process_name","pid":1,"tid":0,"args":{"name":"job0"}}], "displayTimeUnit":"ns"}`)

	events, err := ParseEvents(data)
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Ph != tracevent.PhaseMetadata {
		t.Fatalf("expected metadata phase, got %q", events[0].Ph)
	}
}

func TestParseEventsPreservesArgOrder(t *testing.T) {
	data := []byte(`[{"ph":"X","name":"n","ts":0,"dur":1,"pid":0,"tid":0,"args":{"z":1,"a":2,"m":3}}]`)
	events, err := ParseEvents(data)
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	var keys []string
	for pair := events[0].Args.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	want := []string{"z", "a", "m"}
	if len(keys) != len(want) {
		t.Fatalf("got keys %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("got keys %v, want %v", keys, want)
		}
	}
}
