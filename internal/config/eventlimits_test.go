package config

import (
	"strings"
	"testing"
)

func TestParseEventLimitsEmptyStringIsValidNoLimits(t *testing.T) {
	limits, err := ParseEventLimits("")
	if err != nil {
		t.Fatalf("ParseEventLimits: %v", err)
	}
	if limits.Skip != 0 || limits.Count != 0 || limits.TsStart != 0 || limits.TsEnd != 0 || len(limits.NoCountTypes) != 0 {
		t.Fatalf("expected zero-value EventLimits, got %+v", limits)
	}
}

func TestParseEventLimitsDecodesKnownKeys(t *testing.T) {
	limits, err := ParseEventLimits(`{"skip": 10, "count": 1000, "ts_start": 1.5, "ts_end": 9.5, "no_count_types": ["marker"]}`)
	if err != nil {
		t.Fatalf("ParseEventLimits: %v", err)
	}
	if limits.Skip != 10 || limits.Count != 1000 || limits.TsStart != 1.5 || limits.TsEnd != 9.5 {
		t.Fatalf("unexpected decode: %+v", limits)
	}
	if len(limits.NoCountTypes) != 1 || limits.NoCountTypes[0] != "marker" {
		t.Fatalf("expected no_count_types=[marker], got %v", limits.NoCountTypes)
	}
}

func TestParseEventLimitsRejectsUnknownKey(t *testing.T) {
	_, err := ParseEventLimits(`{"skip": 1, "bogus": true}`)
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParseEventLimitsRejectsNegativeSkipAndCount(t *testing.T) {
	if _, err := ParseEventLimits(`{"skip": -1}`); err == nil {
		t.Fatal("expected error for negative skip")
	}
	if _, err := ParseEventLimits(`{"count": -1}`); err == nil {
		t.Fatal("expected error for negative count")
	}
}

func TestParseEventLimitsRejectsTsStartAfterTsEnd(t *testing.T) {
	_, err := ParseEventLimits(`{"ts_start": 10, "ts_end": 5}`)
	if err == nil {
		t.Fatal("expected error when ts_start > ts_end")
	}
}

func TestParseEventLimitsRejectsMalformedJSON(t *testing.T) {
	_, err := ParseEventLimits(`{not json`)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if !strings.Contains(err.Error(), "schema") {
		t.Fatalf("expected schema excerpt in error message, got %v", err)
	}
}

func TestEventLimitsSchemaJSONMentionsAllKeys(t *testing.T) {
	schema := EventLimitsSchemaJSON()
	for _, key := range []string{"skip", "count", "ts_start", "ts_end", "no_count_types"} {
		if !strings.Contains(schema, key) {
			t.Fatalf("expected schema to mention %q, got:\n%s", key, schema)
		}
	}
}
