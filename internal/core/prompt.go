package core

import (
	"fmt"
	"strings"

	"hatedog.dev/hate-filter/internal/index"
)

const policyPreamble = `당신은 한국어 문장이 '혐오' 표현인지 '정상' 내용인지 판별하는 분류 전문가입니다.
각 문장을 반드시 '혐오' 또는 '정상' 중 하나로 먼저 분류하고, 이어서 판단 근거를 한 문장으로 설명하십시오.

[분류 기준]
* 혐오: 성별, 인종, 출신 지역, 종교, 정치 성향, 성적 지향, 나이, 직업 등 특정 집단이나 개인을 비하, 차별, 조롱, 위협하거나 모욕하는 내용을 직접 또는 간접적으로 담은 문장.
* 정상: 일상 대화, 감상, 의견, 질문, 정보 전달처럼 위 혐오 기준에 해당하지 않는 문장.
* 혐오 단어가 들어 있더라도 그 표현의 사용을 비판하거나 쓰지 말자는 맥락이면 '정상'입니다.

[기본 예시]
입력: 오늘 점심 뭐 먹을지 고민이다.
[최종 분류]: 정상
[판단 근거]: 점심 메뉴에 대한 일상적인 고민을 말하는 문장입니다.

입력: 기사에서 '틀딱충' 같은 표현을 쓰는 건 잘못이라고 지적하더라.
[최종 분류]: 정상
[판단 근거]: 혐오 표현을 언급하지만 그 사용을 비판하는 맥락이므로 정상입니다.`

const (
	examplesHeader   = "[참고: 입력과 유사한 혐오 분류 예시]"
	exampleSeparator = "\n---\n"
	classifierHeader = "[보조 분류기 분석 결과 (참고용)]"
	answerFormat     = `(위 정보를 종합하여 내부적으로 단계별로 검토하되, 출력은 반드시 아래 두 줄 형식으로만 작성하십시오.)
[최종 분류]: ['혐오' 또는 '정상' 중 하나]
[판단 근거]: [판단 이유를 한 문장으로 작성]`
)

type PromptInput struct {
	Comment           string
	Examples          []index.Example
	IncludeClassifier bool
	ClassifierSummary string
}

// FormatExample renders one stored example as input, classification, rationale.
func FormatExample(ex index.Example) string {
	category := ex.Category
	if category == "" {
		category = "N/A"
	}
	label := ex.Label
	if label == "" {
		label = "N/A"
	}
	rationale := ex.Rationale
	if rationale == "" {
		rationale = "N/A"
	}
	return fmt.Sprintf("입력: %s\n[최종 분류]: %s\n[판단 근거]: %s (참고 범주: %s)\n",
		strings.TrimSpace(ex.Text), label, rationale, category)
}

// AssemblePrompt builds the judgment prompt. It is a pure function of its input.
func AssemblePrompt(in PromptInput) string {
	parts := []string{policyPreamble}

	if len(in.Examples) > 0 {
		formatted := make([]string, len(in.Examples))
		for i, ex := range in.Examples {
			formatted[i] = FormatExample(ex)
		}
		parts = append(parts, examplesHeader, "---", strings.Join(formatted, exampleSeparator), "---")
	}

	var final strings.Builder
	final.WriteString("=== 최종 판단 ===\n[입력 문장]\n")
	fmt.Fprintf(&final, "\"%s\"\n", in.Comment)
	if in.IncludeClassifier && in.ClassifierSummary != "" {
		final.WriteString("\n")
		final.WriteString(classifierHeader)
		final.WriteString("\n")
		final.WriteString(in.ClassifierSummary)
		final.WriteString("\n")
	}
	final.WriteString("\n")
	final.WriteString(answerFormat)
	parts = append(parts, final.String())

	return strings.Join(parts, "\n\n")
}
