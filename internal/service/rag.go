// Package service implements the retrieval-augmented query engine: embed the
// question, search the tenant's own index, ground a prompt in the retrieved
// chunks, generate, and run the cross-tenant isolation backstop.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dayaobuxiao/EchoSage/internal/embedder"
	"github.com/dayaobuxiao/EchoSage/internal/llm"
	"github.com/dayaobuxiao/EchoSage/internal/manager"
	"github.com/dayaobuxiao/EchoSage/internal/vectorindex"
)

const (
	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 5

	// RefusalMessage replaces any generated answer that references another
	// tenant. The wording is fixed; callers and tests rely on it.
	RefusalMessage = "I apologize, but I can't provide that information."
)

var (
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrEmbedQuery marks failures embedding the question.
	ErrEmbedQuery = errors.New("query embedding failed")

	// ErrGenerate marks failures of the answer generation service.
	ErrGenerate = errors.New("answer generation failed")
)

// orgMention matches "Organization <id>" references in generated text.
var orgMention = regexp.MustCompile(`Organization\s+([A-Za-z0-9_-]+)`)

// RAGService answers questions grounded in one tenant's indexed documents.
type RAGService struct {
	manager *manager.Manager
	embed   embedder.Embedder
	llm     llm.LLM
	topK    int
	logger  *slog.Logger
}

// RAGOption is a functional option for configuring RAGService.
type RAGOption func(*RAGService)

// WithTopK overrides the retrieval depth.
func WithTopK(k int) RAGOption {
	return func(s *RAGService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RAGOption {
	return func(s *RAGService) { s.logger = l }
}

// NewRAGService creates a query engine over the given collaborators.
func NewRAGService(m *manager.Manager, embed embedder.Embedder, gen llm.LLM, opts ...RAGOption) *RAGService {
	s := &RAGService{
		manager: m,
		embed:   embed,
		llm:     gen,
		topK:    DefaultTopK,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers the question from the tenant's own index. The retrieval step
// can only touch that tenant's index, which is the isolation guarantee; the
// textual scan at the end is a defense-in-depth backstop on top of it. No
// retries happen here.
func (s *RAGService) Ask(ctx context.Context, tenantID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	queryVec, err := s.embed.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmbedQuery, err)
	}

	results, err := s.manager.Search(ctx, tenantID, queryVec, s.topK)
	if err != nil {
		return "", fmt.Errorf("searching index for tenant %s: %w", tenantID, err)
	}

	prompt := buildPrompt(tenantID, question, results)

	answer, err := s.llm.Generate(ctx, prompt, llm.GenerateOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerate, err)
	}

	if ref, leaked := mentionsOtherTenant(answer, tenantID); leaked {
		s.logger.Warn("generated answer referenced another tenant, refusing",
			"tenant", tenantID, "referenced", ref)
		return RefusalMessage, nil
	}

	return strings.TrimSpace(answer), nil
}

// buildPrompt assembles the organization-scoped prompt: the tenant identity,
// the retrieved context, and an instruction to answer only from that context.
func buildPrompt(tenantID, question string, results []vectorindex.SearchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an AI assistant dedicated to helping Organization %s.\n", tenantID)
	fmt.Fprintf(&sb, "You must only use information specific to Organization %s and must not share or use information from any other organization.\n\n", tenantID)

	sb.WriteString("Context:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, r.Chunk.Text)
	}

	fmt.Fprintf(&sb, "\nQuestion: %s\n\n", question)
	fmt.Fprintf(&sb, "Please provide an answer based solely on the information provided for Organization %s:\n", tenantID)
	return sb.String()
}

// mentionsOtherTenant scans generated text for "Organization <id>" mentions
// of any tenant other than the requesting one. A crude heuristic, kept as a
// documented backstop: it misses paraphrased leaks and can false-positive on
// coincidental matches, but structural isolation upstream is what actually
// prevents leaks.
func mentionsOtherTenant(answer, tenantID string) (string, bool) {
	for _, match := range orgMention.FindAllStringSubmatch(answer, -1) {
		if match[1] != tenantID {
			return match[1], true
		}
	}
	return "", false
}
