// Package composer builds the final message sequence sent to a model,
// optionally rewriting the conversation into a single retrieval-grounded
// turn.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ragchat-router/internal/models"
)

// ErrInvalidInput indicates the message sequence is incompatible with
// retrieval augmentation.
var ErrInvalidInput = errors.New("last message must be from the user to use retrieval augmentation")

// groundedPrompt is the template for the single replacement turn produced
// in RAG mode.
const groundedPrompt = `You are a helpful assistant. Answer the user's question based only on the following context:

Context:
%s

Question: %s`

// Retriever supplies context fragments for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.Fragment, error)
}

// Composer assembles the outgoing message sequence.
type Composer struct {
	retriever Retriever
}

// New constructs a composer backed by the given retriever.
func New(retriever Retriever) *Composer {
	return &Composer{retriever: retriever}
}

// Compose returns the messages to send. With useRAG false the input passes
// through unchanged. With useRAG true the last message must be a user turn;
// its content becomes the retrieval query and the whole conversation is
// replaced by one templated user message embedding the retrieved context.
// Collapsing prior turns is intentional: retrieval mode is single-turn
// grounded QA.
func (c *Composer) Compose(ctx context.Context, messages []models.Message, useRAG bool) ([]models.Message, error) {
	if !useRAG {
		return messages, nil
	}

	if len(messages) == 0 || messages[len(messages)-1].Role != models.RoleUser {
		return nil, ErrInvalidInput
	}

	query := messages[len(messages)-1].Content

	fragments, err := c.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	texts := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		texts = append(texts, fragment.Text)
	}
	contextBlock := strings.Join(texts, "\n\n")

	return []models.Message{
		{
			Role:    models.RoleUser,
			Content: fmt.Sprintf(groundedPrompt, contextBlock, query),
		},
	}, nil
}
