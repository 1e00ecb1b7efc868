package stubapi

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/user/vidlib-bot-go/internal/model"
)

// Answerer produces the assistant's reply for one question over a set of
// transcribed videos.
type Answerer interface {
	Answer(ctx context.Context, question string, videos []model.Video) (string, []model.RelatedVideo, error)
}

// NewAnswerer picks the OpenAI-backed answerer when an API key is
// configured and the canned one otherwise.
func NewAnswerer(openAIKey string) Answerer {
	if openAIKey != "" {
		return &openaiAnswerer{
			client: openai.NewClient(openAIKey),
			canned: cannedAnswerer{},
		}
	}
	return cannedAnswerer{}
}

// cannedAnswerer answers from the transcripts alone: it scores every
// transcript sentence by word overlap with the question and quotes the
// best matches. Good enough to develop the whole chat flow offline.
type cannedAnswerer struct{}

type scoredScene struct {
	video    model.Video
	sentence string
	index    int
	score    int
}

func (cannedAnswerer) Answer(_ context.Context, question string, videos []model.Video) (string, []model.RelatedVideo, error) {
	scenes := scoreScenes(question, videos)
	if len(scenes) == 0 {
		return "I could not find anything about that in this group's transcripts. " +
			"Try rephrasing, or ask about a topic the videos actually cover.", nil, nil
	}

	var b strings.Builder
	b.WriteString("Here is what the recordings say:\n")
	related := make([]model.RelatedVideo, 0, 3)
	for i, sc := range scenes {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "\n- %s (in \"%s\")", sc.sentence, sc.video.Title)
		related = append(related, model.RelatedVideo{
			VideoID:   sc.video.ID,
			Title:     sc.video.Title,
			StartTime: sentenceTimestamp(sc.index),
		})
	}
	return b.String(), related, nil
}

// scoreScenes ranks transcript sentences by the number of shared words
// of four or more characters with the question.
func scoreScenes(question string, videos []model.Video) []scoredScene {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(question)) {
		w = strings.Trim(w, ".,!?\"'")
		if len(w) >= 4 {
			words[w] = true
		}
	}
	if len(words) == 0 {
		return nil
	}

	var scenes []scoredScene
	for _, v := range videos {
		if v.Transcript == "" {
			continue
		}
		for i, sentence := range splitSentences(v.Transcript) {
			score := 0
			for _, w := range strings.Fields(strings.ToLower(sentence)) {
				w = strings.Trim(w, ".,!?\"'")
				if words[w] {
					score++
				}
			}
			if score > 0 {
				scenes = append(scenes, scoredScene{video: v, sentence: sentence, index: i, score: score})
			}
		}
	}
	sort.SliceStable(scenes, func(i, j int) bool { return scenes[i].score > scenes[j].score })
	return scenes
}

// sentenceTimestamp spaces sentences 45 seconds apart, which is close
// enough to real speech for dev links to land in the right region.
func sentenceTimestamp(index int) string {
	seconds := index * 45
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '!' || r == '?' }) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s+".")
		}
	}
	return out
}

func firstSentence(text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return text
	}
	return sentences[0]
}

// openaiAnswerer sends the question plus the transcripts to a chat
// model and keeps the canned answerer's citation scoring, since the
// stub has no real scene index. Any API failure falls back to the
// canned answer so development never blocks on OpenAI.
type openaiAnswerer struct {
	client *openai.Client
	canned cannedAnswerer
}

func (a *openaiAnswerer) Answer(ctx context.Context, question string, videos []model.Video) (string, []model.RelatedVideo, error) {
	var b strings.Builder
	for _, v := range videos {
		if v.Transcript == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n%s\n\n", v.Title, v.Transcript)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You answer questions about a library of video transcripts. " +
					"Answer only from the transcripts below and keep it short.\n\n" + b.String(),
			},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("openai answer failed, falling back to canned answer")
		return a.canned.Answer(ctx, question, videos)
	}
	if len(resp.Choices) == 0 {
		return a.canned.Answer(ctx, question, videos)
	}

	var related []model.RelatedVideo
	for i, sc := range scoreScenes(question, videos) {
		if i >= 3 {
			break
		}
		related = append(related, model.RelatedVideo{
			VideoID:   sc.video.ID,
			Title:     sc.video.Title,
			StartTime: sentenceTimestamp(sc.index),
		})
	}
	return resp.Choices[0].Message.Content, related, nil
}

// syntheticTranscript fabricates a plausible transcript for a processed
// upload, seeded from its title so reruns stay stable.
func syntheticTranscript(title string) string {
	topic := strings.ToLower(strings.TrimSpace(title))
	if topic == "" {
		topic = "this recording"
	}
	sentences := []string{
		fmt.Sprintf("Welcome, today we are going to talk about %s.", topic),
		fmt.Sprintf("First, some background on why %s matters to the team.", topic),
		"The main point is that preparation beats improvisation every single time.",
		fmt.Sprintf("Let us walk through a concrete example of %s step by step.", topic),
		"Notice how the numbers change once the process is actually followed.",
		"A common mistake here is skipping the review stage entirely.",
		fmt.Sprintf("To wrap up, remember the three takeaways about %s we covered.", topic),
		"Thanks for watching, and drop your questions in the usual channel.",
	}
	return strings.Join(sentences, " ")
}
