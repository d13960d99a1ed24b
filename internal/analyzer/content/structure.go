// internal/analyzer/content/structure.go
package content

import (
	"regexp"
	"strconv"
	"strings"

	"blueprint-engine/internal/models"
)

// Structure holds the non-semantic features extracted from a page or query.
// It is computable without any provider, which is what makes the structural
// fallback possible.
type Structure struct {
	Headings            []models.Heading
	WordCount           int
	ParagraphCount      int
	AvgParagraphWords   float64
	ListCount           int
	QuestionCount       int
	DirectAnswerCount   int
	Text                string // cleaned plain text
}

var (
	scriptRe    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe     = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptRe  = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headingRe   = regexp.MustCompile(`(?is)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
	mdHeadingRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	breakRe     = regexp.MustCompile(`(?i)</p>|<br\s*/?>|</div>|</li>`)
	tagRe       = regexp.MustCompile(`(?s)<[^>]+>`)
	spaceRe     = regexp.MustCompile(`[ \t]+`)
	blankRe     = regexp.MustCompile(`\n\s*\n+`)
	htmlListRe  = regexp.MustCompile(`(?i)<li[\s>]`)
	textListRe  = regexp.MustCompile(`(?m)^\s*(?:[-*]|\d+\.)\s+\S`)
	questionRe  = regexp.MustCompile(`(?i)\b(what|how|why|when|where|which|who|can|does|do|is|are|should)\b[^?.!\n]{3,120}\?`)
	answerRe    = regexp.MustCompile(`(?im)^\s*(?:the answer is|yes,|no,|in short,|simply put,|to\s+\w+|[A-Z][^.!?\n]{10,140}\bis\b[^.!?\n]{3,140}[.!?])`)
)

// ParseStructure extracts structural features from raw page content or plain
// text. HTML and markdown-ish input are both handled.
func ParseStructure(raw string) Structure {
	var st Structure

	cleaned := scriptRe.ReplaceAllString(raw, " ")
	cleaned = styleRe.ReplaceAllString(cleaned, " ")
	cleaned = noscriptRe.ReplaceAllString(cleaned, " ")

	for _, m := range headingRe.FindAllStringSubmatch(cleaned, -1) {
		level, _ := strconv.Atoi(m[1])
		text := normalizeSpace(tagRe.ReplaceAllString(m[2], " "))
		if text != "" {
			st.Headings = append(st.Headings, models.Heading{Level: level, Text: text})
		}
	}
	for _, m := range mdHeadingRe.FindAllStringSubmatch(cleaned, -1) {
		st.Headings = append(st.Headings, models.Heading{Level: len(m[1]), Text: strings.TrimSpace(m[2])})
	}

	st.ListCount = len(htmlListRe.FindAllString(cleaned, -1)) + len(textListRe.FindAllString(cleaned, -1))

	// Tag boundaries become paragraph breaks before stripping.
	cleaned = breakRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = tagRe.ReplaceAllString(cleaned, " ")
	cleaned = unescapeEntities(cleaned)
	cleaned = spaceRe.ReplaceAllString(cleaned, " ")
	st.Text = strings.TrimSpace(blankRe.ReplaceAllString(cleaned, "\n\n"))

	st.WordCount = len(strings.Fields(st.Text))

	paragraphs := strings.Split(st.Text, "\n\n")
	totalWords := 0
	for _, p := range paragraphs {
		words := len(strings.Fields(p))
		if words == 0 {
			continue
		}
		st.ParagraphCount++
		totalWords += words
	}
	if st.ParagraphCount > 0 {
		st.AvgParagraphWords = float64(totalWords) / float64(st.ParagraphCount)
	}

	st.QuestionCount = len(questionRe.FindAllString(st.Text, -1))
	st.DirectAnswerCount = len(answerRe.FindAllString(st.Text, -1))

	return st
}

// HasQuestionAnswerPattern reports whether text contains at least one
// question followed by direct-answer phrasing; the SERP analyzer uses this to
// spot featured-snippet candidates.
func HasQuestionAnswerPattern(text string) bool {
	return questionRe.MatchString(text) && answerRe.MatchString(text)
}

// ContainsQuestion reports whether text phrases at least one question.
func ContainsQuestion(text string) bool {
	return questionRe.MatchString(text)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

func unescapeEntities(s string) string {
	return entityReplacer.Replace(s)
}
