package agent

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExtractJSONObjects(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "bare object",
			in:   `{"route":"data_presenter","steps":[]}`,
			want: []string{`{"route":"data_presenter","steps":[]}`},
		},
		{
			name: "object wrapped in prose",
			in:   "Here is the plan:\n```json\n{\"a\":1}\n```\nDone.",
			want: []string{`{"a":1}`},
		},
		{
			name: "brace inside double-quoted string",
			in:   `{"notes":"use {curly} braces","a":1}`,
			want: []string{`{"notes":"use {curly} braces","a":1}`},
		},
		{
			name: "brace inside single-quoted string",
			in:   `{'notes':'a } inside','a':1}`,
			want: []string{`{'notes':'a } inside','a':1}`},
		},
		{
			name: "escaped quote before brace",
			in:   `{"s":"he said \"hi\" {ok}","b":2}`,
			want: []string{`{"s":"he said \"hi\" {ok}","b":2}`},
		},
		{
			name: "escaped backslash at string end",
			in:   `{"path":"C:\\","b":2}`,
			want: []string{`{"path":"C:\\","b":2}`},
		},
		{
			name: "two candidates in order",
			in:   `first {"a":1} then {"b":2}`,
			want: []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name: "nested objects yield outermost",
			in:   `{"outer":{"inner":1}}`,
			want: []string{`{"outer":{"inner":1}}`},
		},
		{
			name: "unbalanced open never closes",
			in:   `{"a": {"b": 1}`,
			want: nil,
		},
		{
			name: "stray close brace ignored",
			in:   `} {"a":1}`,
			want: []string{`{"a":1}`},
		},
		{
			name: "apostrophe in prose does not open a string",
			in:   "it's fine {\"a\":1}",
			want: []string{`{"a":1}`},
		},
		{
			name: "no objects",
			in:   "no json here",
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractJSONObjects(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d candidates %q, want %d %q", len(got), got, len(tc.want), tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("candidate %d: got %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestStripTrailingCommas(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1,}`, `{"a":1}`},
		{`{"a":[1,2,],}`, `{"a":[1,2]}`},
		{"{\"a\":1,\n}", "{\"a\":1\n}"},
		{`{"s":"keep , inside ,]",}`, `{"s":"keep , inside ,]"}`},
		{`{"a":1,"b":2}`, `{"a":1,"b":2}`},
	}
	for _, tc := range cases {
		if got := StripTrailingCommas(tc.in); got != tc.want {
			t.Errorf("StripTrailingCommas(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractThenParse_RecoversSloppyPlan(t *testing.T) {
	raw := "Sure! Here's the plan you asked for:\n" +
		"{\"route\": \"data_presenter\", \"steps\": [\n" +
		"  {\"tool\": \"top_products\", \"args\": {\"metric\": \"sales\", \"startDate\": \"2026-01-01\", \"endDate\": \"2026-01-31\", \"limit\": 10,}},\n" +
		"],}\n" +
		"Let me know if you need anything else."

	candidates := ExtractJSONObjects(raw)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	var plan Plan
	if err := json.Unmarshal([]byte(StripTrailingCommas(candidates[0])), &plan); err != nil {
		t.Fatalf("cleaned candidate does not parse: %v", err)
	}
	if plan.Route != RouteDataPresenter || len(plan.Steps) != 1 {
		t.Errorf("unexpected plan: %+v", plan)
	}
}

func FuzzExtractJSONObjects(f *testing.F) {
	f.Add(`{"a":1}`)
	f.Add(`{"s":"} {"}`)
	f.Add(`{'x':'\''} trailing`)
	f.Add("{{{")
	f.Add(`}{"a":[1,2,],}{`)
	f.Fuzz(func(t *testing.T, input string) {
		for _, candidate := range ExtractJSONObjects(input) {
			if !strings.HasPrefix(candidate, "{") || !strings.HasSuffix(candidate, "}") {
				t.Fatalf("candidate not brace-delimited: %q (input %q)", candidate, input)
			}
			// Stripping commas must never panic and must keep braces.
			cleaned := StripTrailingCommas(candidate)
			if !strings.HasPrefix(cleaned, "{") || !strings.HasSuffix(cleaned, "}") {
				t.Fatalf("cleaned candidate lost braces: %q", cleaned)
			}
		}
	})
}
