package suggest

import (
	"context"
	"strings"

	"github.com/dyluth/vesper/pkg/store"
)

// Fake is a deterministic Generator for tests and offline use. It derives a
// plausible suggestion from the prompt text without any network call.
type Fake struct {
	// Err, when set, is returned from every call (for failure-path tests).
	Err error
}

// Suggest implements Generator.Suggest.
func (f *Fake) Suggest(ctx context.Context, prompt string) (*Suggestion, error) {
	if f.Err != nil {
		return nil, f.Err
	}

	title := strings.TrimSpace(prompt)
	if title == "" {
		title = "Untitled task"
	}

	return &Suggestion{
		Title:           title,
		DurationMinutes: 30,
		StaminaCost:     3,
		Priority:        store.PriorityNormal,
		ActivityType:    store.ActivityAdmin,
	}, nil
}

// SuggestBatch implements Generator.SuggestBatch.
func (f *Fake) SuggestBatch(ctx context.Context, prompt string, n int) ([]Suggestion, error) {
	if f.Err != nil {
		return nil, f.Err
	}

	if n <= 0 {
		n = 1
	}

	s, _ := f.Suggest(ctx, prompt)
	out := make([]Suggestion, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, *s)
	}
	return out, nil
}
