package main

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"
)

func TestRun_CustomerCountAndLimit(t *testing.T) {
	for _, tc := range []struct {
		customers, limit int
	}{
		{1, 1},
		{10, 4},
		{200, 16},
	} {
		var out bytes.Buffer
		if !run(context.Background(), &out, tc.customers, tc.limit) {
			t.Fatalf("customers=%d limit=%d: checks failed:\n%s", tc.customers, tc.limit, out.String())
		}

		report := out.String()
		if !strings.Contains(report, "Customers:        "+strconv.Itoa(tc.customers)) {
			t.Errorf("customers=%d: count not reported", tc.customers)
		}
		if !strings.Contains(report, "Admission Limit:  "+strconv.Itoa(tc.limit)) {
			t.Errorf("limit=%d: limit not reported", tc.limit)
		}
		if got := strings.Count(report, "\nOrder "); got != tc.customers {
			t.Errorf("customers=%d: expected %d orders printed, got %d", tc.customers, tc.customers, got)
		}
	}
}

func TestRun_LimitBelowOneUsesDefault(t *testing.T) {
	var out bytes.Buffer
	if !run(context.Background(), &out, 5, 0) {
		t.Fatalf("checks failed:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Admission Limit:  1") {
		t.Error("expected the default admission limit to be reported")
	}
}
