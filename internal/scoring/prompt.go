package scoring

import "strings"

const replyFormat = "\n请按以下格式回复：\n评分：[0-100的数字]\n理由：[详细的评分理由，说明各项要求的达成情况]"

const noWritingNote = "\n注意：未提供正文内容，无法进行相似度比较，请提供构思内容以便评分。"

func writeItems(sb *strings.Builder, heading string, items []Item) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n" + heading + "：")
	for _, it := range items {
		if len(it.Items) > 0 {
			sb.WriteString("\n" + it.Label + "：")
			for _, sub := range it.Items {
				sb.WriteString("\n  - " + sub.Label + "：" + sub.Text)
			}
			continue
		}
		sb.WriteString("\n- " + it.Label + "：" + it.Text)
	}
}

// writeStandard renders the stage header shared by every rubric prompt.
func writeStandard(sb *strings.Builder, st Stage) {
	sb.WriteString("请根据以下标准对内容进行评分（0-100分）：")
	sb.WriteString("\n评分标准：\n" + st.Description)
	sb.WriteString("\n评分要点：\n")
	for i, c := range st.Criteria {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- " + c)
	}
	writeItems(sb, "详细评分要求", st.DetailedRequirements)
	writeItems(sb, "相似度评分规则", st.SimilarityScoring)
	writeItems(sb, "评估流程", st.EvaluationProcess)
}

// StagePrompt builds the rubric prompt for content of one stage.
func StagePrompt(st Stage, content string) string {
	var sb strings.Builder
	writeStandard(&sb, st)
	writeItems(&sb, "创新指数评级", st.InnovationIndex)
	writeItems(&sb, "常见写法扣分规则", st.CommonPatternsPenalty)
	writeItems(&sb, "创新表现加分规则", st.InnovationBonus)
	writeItems(&sb, "扣分规则", st.DeductionRules)
	sb.WriteString("\n待评分内容：\n" + content)
	sb.WriteString(replyFormat)
	return sb.String()
}

// IdeationPrompt builds the rubric prompt for the ideation stage. With
// writing present the model is asked to compare its summary against the
// ideation; otherwise the prompt notes that no comparison is possible.
func IdeationPrompt(st Stage, ideation, writing string) string {
	var sb strings.Builder
	writeStandard(&sb, st)
	sb.WriteString("\n构思内容：\n" + ideation)
	if strings.TrimSpace(writing) != "" {
		sb.WriteString("\n正文内容：\n" + writing)
		sb.WriteString("\n请按照评估流程：")
		sb.WriteString("\n1. 先将正文内容总结为一段话")
		sb.WriteString("\n2. 计算正文摘要与构思内容的相似度百分比")
		sb.WriteString("\n3. 相似度百分比直接作为构思得分")
		sb.WriteString("\n4. 在理由中详细说明相似度分析过程")
	} else {
		sb.WriteString(noWritingNote)
	}
	sb.WriteString(replyFormat)
	return sb.String()
}

// CritiquePrompt asks for structured feedback on content instead of a
// score line.
func CritiquePrompt(st Stage, content string) string {
	var sb strings.Builder
	writeStandard(&sb, st)
	writeItems(&sb, "扣分规则", st.DeductionRules)
	sb.WriteString("\n待点评内容：\n" + content)
	sb.WriteString("\n请对照评分标准指出优点、不足和修改建议。verdict 取 revise、acceptable 或 strong；confidence 为0-100的数字；dimension_scores 按评分要点给出各项分数。")
	return sb.String()
}

const summarySystem = "你是一名编辑，擅长准确概括文章的核心内容。"

// SummaryPrompt asks for a one-paragraph summary of the finished text.
func SummaryPrompt(writing string) string {
	return "请将以下正文内容总结为一段话，概括其核心思想、主题和主要情节或论点，不要添加评价：\n\n" + writing
}

// LeadingSentences returns up to n sentences from the start of text,
// capped at maxRunes. It stands in for a model summary when none is
// available.
func LeadingSentences(text string, n, maxRunes int) string {
	text = strings.TrimSpace(text)
	var sb strings.Builder
	sentences, runes := 0, 0
	for _, r := range text {
		sb.WriteRune(r)
		runes++
		if strings.ContainsRune("。！？!?.；;\n", r) {
			sentences++
			if sentences >= n {
				break
			}
		}
		if runes >= maxRunes {
			break
		}
	}
	return strings.TrimSpace(sb.String())
}
