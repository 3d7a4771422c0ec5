package usecase

import (
	"context"
	"fmt"
	"strings"

	"sopqa/internal/domain"
	"sopqa/internal/port"
)

// systemInstruction pins the assistant to the supplied context. Any
// formatting directives belong here, never negotiated per call.
const systemInstruction = `You are a helpful assistant for procedural documents. Answer the question using only the provided context.
Be flexible and try to find the relevant answer in the context, but never invent facts that are not there.
Do not refer to the fact that you are answering from context.
If the answer cannot be found in the context, say: 'The answer is not available in the provided documents.'`

// AnswerGenerator assembles the grounded prompt and invokes the LLM.
type AnswerGenerator struct {
	llm port.LLM
}

func NewAnswerGenerator(llm port.LLM) *AnswerGenerator {
	return &AnswerGenerator{llm: llm}
}

// Generate answers the question from the given passages. The returned
// sources are the distinct passage origins, in retrieval order.
func (g *AnswerGenerator) Generate(ctx context.Context, question string, passages []domain.Passage) (domain.Answer, error) {
	prompt := buildUserPrompt(question, passages)

	text, err := g.llm.Generate(ctx, systemInstruction, prompt)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("answer generation failed: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Answer{}, fmt.Errorf("%w: model returned an empty answer", domain.ErrMalformedResponse)
	}

	return domain.Answer{
		Text:    text,
		Sources: uniqueSources(passages),
	}, nil
}

func buildUserPrompt(question string, passages []domain.Passage) string {
	var sb strings.Builder

	sb.WriteString("Context:\n")
	if len(passages) == 0 {
		sb.WriteString("(no relevant context was found)\n")
	}
	for _, p := range passages {
		fmt.Fprintf(&sb, "\n[Source: %s]\n%s\n", p.Source, p.Text)
	}

	fmt.Fprintf(&sb, "\nQuestion: %s\n", question)
	return sb.String()
}

func uniqueSources(passages []domain.Passage) []string {
	sources := []string{}
	seen := make(map[string]struct{})
	for _, p := range passages {
		if _, ok := seen[p.Source]; !ok {
			seen[p.Source] = struct{}{}
			sources = append(sources, p.Source)
		}
	}
	return sources
}
