package messages

// Usage is the normalized token accounting attached to assistant and
// result envelopes. InputTokens and OutputTokens are always present;
// the remaining counters appear only when the backend reported them.
type Usage struct {
	InputTokens          int  `json:"input_tokens"`
	OutputTokens         int  `json:"output_tokens"`
	CacheReadInputTokens *int `json:"cache_read_input_tokens,omitempty"`
	TotalTokens          *int `json:"total_tokens,omitempty"`
}

// TokenMetadata mirrors the backend's native usage report. Field
// names follow the generation API's camelCase counters.
type TokenMetadata struct {
	PromptTokenCount        int
	CandidatesTokenCount    int
	CachedContentTokenCount int
	TotalTokenCount         int
}

// NewUsage normalizes backend token metadata. A nil metadata yields
// the zero baseline. The two required counters default to zero; the
// optional counters are omitted entirely when the backend did not
// report them.
func NewUsage(md *TokenMetadata) Usage {
	if md == nil {
		return Usage{}
	}

	u := Usage{
		InputTokens:  md.PromptTokenCount,
		OutputTokens: md.CandidatesTokenCount,
	}
	if md.CachedContentTokenCount > 0 {
		v := md.CachedContentTokenCount
		u.CacheReadInputTokens = &v
	}
	if md.TotalTokenCount > 0 {
		v := md.TotalTokenCount
		u.TotalTokens = &v
	}

	return u
}

// Merge folds newer usage into u, keeping every counter monotonic.
// Backends re-report cumulative totals on each event, so counters
// only ever move forward.
func (u *Usage) Merge(next Usage) {
	if next.InputTokens > u.InputTokens {
		u.InputTokens = next.InputTokens
	}
	if next.OutputTokens > u.OutputTokens {
		u.OutputTokens = next.OutputTokens
	}
	if next.CacheReadInputTokens != nil {
		if u.CacheReadInputTokens == nil || *next.CacheReadInputTokens > *u.CacheReadInputTokens {
			v := *next.CacheReadInputTokens
			u.CacheReadInputTokens = &v
		}
	}
	if next.TotalTokens != nil {
		if u.TotalTokens == nil || *next.TotalTokens > *u.TotalTokens {
			v := *next.TotalTokens
			u.TotalTokens = &v
		}
	}
}
