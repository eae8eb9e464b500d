package core

// Classification values double as the wire strings sent to the browser extension.
type Classification string

const (
	Hateful Classification = "혐오"
	Normal  Classification = "정상"
	Unclear Classification = "불명확"
	Errored Classification = "오류"
)

const (
	RationaleParseFailed = "파싱 실패"
	RationaleMissing     = "이유 명시 없음 (판단 근거 누락)"
)

type AnalysisResult struct {
	Classification    Classification `json:"classification"`
	Rationale         string         `json:"reason"`
	RawModelOutput    string         `json:"raw_llm_output"`
	ClassifierContext string         `json:"koelectra_output"`
}

func (r AnalysisResult) IsHateful() bool {
	return r.Classification == Hateful
}

func errorResult(rationale, classifierSummary string) AnalysisResult {
	return AnalysisResult{
		Classification:    Errored,
		Rationale:         rationale,
		ClassifierContext: classifierSummary,
	}
}

// ClassifierContext is the auxiliary classifier's view of one text.
type ClassifierContext struct {
	Probabilities map[string]float64
	Active        []string
	Summary       string
	// Available is false when the model could not be reached; Summary then says so.
	Available bool
}

// Include reports whether the context should be shown to the judgment model:
// only when the model answered and at least one category fired.
func (c ClassifierContext) Include() bool {
	return c.Available && len(c.Active) > 0 && c.Summary != ""
}
