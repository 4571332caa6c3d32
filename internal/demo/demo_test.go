package demo

import (
	"testing"
)

func TestRecords(t *testing.T) {
	records, err := Records()
	if err != nil {
		t.Fatalf("Failed to load demo records: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("Expected demo records")
	}

	prev := ""
	for i, r := range records {
		if _, ok := r["id"]; !ok {
			t.Errorf("record %d: missing id", i)
		}
		start, _ := r["start_date_local"].(string)
		if start == "" {
			t.Errorf("record %d: missing start_date_local", i)
		}
		if prev != "" && start > prev {
			t.Errorf("record %d: expected most recent first, %s after %s", i, start, prev)
		}
		prev = start
	}
}

func TestRecordsAreFreshCopies(t *testing.T) {
	first, _ := Records()
	first[0]["name"] = "changed"

	second, _ := Records()
	if second[0]["name"] == "changed" {
		t.Error("Expected each call to decode a fresh copy")
	}
}
