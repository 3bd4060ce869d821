package model

// Metadata is the per-message record of generation details shown in the
// "AI details" panel. It is built up from partial objects that arrive
// across several stream frames.
type Metadata struct {
	FunctionCalls   []FunctionCallRecord `json:"functionCalls,omitempty"`
	SafetyRatings   []SafetyRating       `json:"safetyRatings,omitempty"`
	FinishReason    string               `json:"finishReason,omitempty"`
	UsageMetadata   *UsageMetadata       `json:"usageMetadata,omitempty"`
	HasNonTextParts bool                 `json:"hasNonTextParts,omitempty"`
}

// FunctionCallRecord is either a tool call (Name + Args) or the tool's
// response (Name + Response).
type FunctionCallRecord struct {
	Name     string         `json:"name"`
	Args     map[string]any `json:"args,omitempty"`
	Response any            `json:"response,omitempty"`
}

// IsResponse reports whether the record is the response variant.
func (r FunctionCallRecord) IsResponse() bool {
	return r.Response != nil
}

type SafetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
	Blocked     bool   `json:"blocked,omitempty"`
}

type UsageMetadata struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	TotalTokenCount      int64 `json:"totalTokenCount"`
}

// Merge folds other into m: function-call and safety lists concatenate,
// scalar fields take the latest non-empty value and booleans OR together.
func (m *Metadata) Merge(other *Metadata) {
	if m == nil || other == nil {
		return
	}
	m.FunctionCalls = append(m.FunctionCalls, other.FunctionCalls...)
	m.SafetyRatings = append(m.SafetyRatings, other.SafetyRatings...)
	if other.FinishReason != "" {
		m.FinishReason = other.FinishReason
	}
	if other.UsageMetadata != nil {
		usage := *other.UsageMetadata
		m.UsageMetadata = &usage
	}
	m.HasNonTextParts = m.HasNonTextParts || other.HasNonTextParts
}

// MergeMetadata returns the merge of a and b without mutating either.
// A nil result means both inputs were nil.
func MergeMetadata(a, b *Metadata) *Metadata {
	if a == nil && b == nil {
		return nil
	}
	out := &Metadata{}
	out.Merge(a)
	out.Merge(b)
	return out
}

// IsEmpty reports whether there is nothing worth displaying.
func (m *Metadata) IsEmpty() bool {
	if m == nil {
		return true
	}
	return len(m.FunctionCalls) == 0 &&
		len(m.SafetyRatings) == 0 &&
		m.FinishReason == "" &&
		m.UsageMetadata == nil &&
		!m.HasNonTextParts
}
