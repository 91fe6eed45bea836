package messages_test

import (
	"testing"

	"github.com/tandem-dev/tandem/pkg/tandem/messages"
)

func TestNewUsage(t *testing.T) {
	tests := []struct {
		name       string
		md         *messages.TokenMetadata
		wantInput  int
		wantOutput int
		wantCache  *int
		wantTotal  *int
	}{
		{
			name: "nil metadata yields zero baseline",
			md:   nil,
		},
		{
			name:      "prompt only yields zero output tokens",
			md:        &messages.TokenMetadata{PromptTokenCount: 42},
			wantInput: 42,
		},
		{
			name: "all counters",
			md: &messages.TokenMetadata{
				PromptTokenCount:        10,
				CandidatesTokenCount:    20,
				CachedContentTokenCount: 5,
				TotalTokenCount:         35,
			},
			wantInput:  10,
			wantOutput: 20,
			wantCache:  intPtr(5),
			wantTotal:  intPtr(35),
		},
		{
			name:       "zero optional counters stay omitted",
			md:         &messages.TokenMetadata{PromptTokenCount: 1, CandidatesTokenCount: 2},
			wantInput:  1,
			wantOutput: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := messages.NewUsage(tt.md)

			if u.InputTokens != tt.wantInput {
				t.Errorf("InputTokens = %d, want %d", u.InputTokens, tt.wantInput)
			}
			if u.OutputTokens != tt.wantOutput {
				t.Errorf("OutputTokens = %d, want %d", u.OutputTokens, tt.wantOutput)
			}
			checkOptional(t, "CacheReadInputTokens", u.CacheReadInputTokens, tt.wantCache)
			checkOptional(t, "TotalTokens", u.TotalTokens, tt.wantTotal)
		})
	}
}

func TestUsageMergeMonotonic(t *testing.T) {
	u := messages.NewUsage(&messages.TokenMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5})

	// A later cumulative report moves counters forward.
	u.Merge(messages.NewUsage(&messages.TokenMetadata{PromptTokenCount: 10, CandidatesTokenCount: 9}))
	if u.OutputTokens != 9 {
		t.Errorf("OutputTokens = %d, want 9", u.OutputTokens)
	}

	// A stale lower report never decreases them.
	u.Merge(messages.NewUsage(&messages.TokenMetadata{PromptTokenCount: 3, CandidatesTokenCount: 2}))
	if u.InputTokens != 10 || u.OutputTokens != 9 {
		t.Errorf("usage = %+v, counters must not decrease", u)
	}
}

func intPtr(v int) *int { return &v }

func checkOptional(t *testing.T, field string, got, want *int) {
	t.Helper()

	switch {
	case want == nil && got != nil:
		t.Errorf("%s = %d, want omitted", field, *got)
	case want != nil && got == nil:
		t.Errorf("%s omitted, want %d", field, *want)
	case want != nil && *got != *want:
		t.Errorf("%s = %d, want %d", field, *got, *want)
	}
}
