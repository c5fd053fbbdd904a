package pattern

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is one fenced block lifted from a markdown document.
type CodeBlock struct {
	Language string
	Code     string
}

// ExtractCodeBlocks walks a markdown document and returns its fenced code
// blocks. Plans arrive as markdown; their prose is noise for signature and
// keyword analysis, so the plan-review path analyzes only the fences.
func ExtractCodeBlocks(source string) []CodeBlock {
	md := goldmark.New()
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))

	var blocks []CodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var sb strings.Builder
		for i := 0; i < fence.Lines().Len(); i++ {
			line := fence.Lines().At(i)
			sb.Write(line.Value(src))
		}

		language := ""
		if fence.Info != nil {
			language = string(fence.Info.Segment.Value(src))
		}

		blocks = append(blocks, CodeBlock{
			Language: strings.TrimSpace(language),
			Code:     sb.String(),
		})
		return ast.WalkContinue, nil
	})

	return blocks
}

// AnalyzableContent reduces a markdown plan to the text worth analyzing:
// the concatenated fenced code blocks, or the document itself when it
// carries no fences.
func AnalyzableContent(source string) string {
	blocks := ExtractCodeBlocks(source)
	if len(blocks) == 0 {
		return source
	}

	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, b.Code)
	}
	return strings.Join(parts, "\n")
}
