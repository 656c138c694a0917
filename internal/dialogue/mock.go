package dialogue

import (
	"context"
	"fmt"
	"time"
)

type mockGenerator struct{}

// NewMockGenerator returns a backend that fabricates a short interview
// without any model call. Used in tests and development configs.
func NewMockGenerator() Generator { return &mockGenerator{} }

func (m *mockGenerator) Generate(ctx context.Context, req Request) ([]Line, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	topic := req.Topic
	return []Line{
		{Speaker: RoleExaminer, Text: fmt.Sprintf("I'd like you to describe %s. You have one minute to prepare and speak for up to two minutes.", topic)},
		{Speaker: RoleCandidate, Text: fmt.Sprintf("I'd like to talk about %s. It plays a meaningful part in my everyday life.", topic)},
		{Speaker: RoleExaminer, Text: fmt.Sprintf("What do you see as the main advantages of %s?", topic)},
		{Speaker: RoleCandidate, Text: "The biggest advantage, in my view, is how accessible it has become to most people."},
		{Speaker: RoleExaminer, Text: "And how do you think this will change in the future?"},
		{Speaker: RoleCandidate, Text: "I expect it will keep growing in importance, although not without some challenges along the way."},
	}, nil
}
