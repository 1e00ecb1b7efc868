package chat

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/user/vidlib-bot-go/internal/model"
)

// For any sequence of good/bad clicks the stored state follows the
// toggle rule: clicking the active value clears it, anything else sets
// the clicked value. Ratings never stack.
func TestProperty_FeedbackToggleNeverStacks(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	clickGen := gen.SliceOfN(12, gen.OneConstOf(model.FeedbackGood, model.FeedbackBad))

	properties.Property("state follows the toggle rule", prop.ForAll(
		func(clicks []model.Feedback) bool {
			backend := newFakeBackend()
			s := NewSession(backend, "g1", "https://app.example")
			if _, err := s.Send(context.Background(), "q"); err != nil {
				return false
			}

			want := model.FeedbackNone
			for _, click := range clicks {
				if want == click {
					want = model.FeedbackNone
				} else {
					want = click
				}

				got, err := s.ToggleFeedback(context.Background(), "log-1", click)
				if err != nil || got != want {
					return false
				}
				if s.Messages()[1].Feedback != want {
					return false
				}
			}
			return true
		},
		clickGen,
	))

	properties.TestingRun(t)
}
