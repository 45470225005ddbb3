package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nexusagent/internal/domain"
	"nexusagent/internal/ports"
)

// FeedbackTrigger scores a finished interview transcript and persists
// the result. One scorer call per invocation, no retries; any
// downstream failure is logged and reported as success=false rather
// than propagated.
type FeedbackTrigger struct {
	scorer   ports.Scorer
	feedback ports.FeedbackStore
	clock    func() time.Time
}

func NewFeedbackTrigger(scorer ports.Scorer, feedback ports.FeedbackStore) *FeedbackTrigger {
	return &FeedbackTrigger{scorer: scorer, feedback: feedback, clock: time.Now}
}

// Generate formats the transcript, obtains a score and persists it.
// A non-empty feedbackID overwrites that document; otherwise a new one
// is created. Returns the persisted feedback ID and whether the whole
// chain succeeded.
func (t *FeedbackTrigger) Generate(
	ctx context.Context,
	emitter ports.LogEmitter,
	interviewID, userID string,
	transcript []domain.Utterance,
	feedbackID string,
) (string, bool) {
	emitter.Processing(ctx, "feedback_creation_start", map[string]any{
		"interviewId":      interviewID,
		"feedbackId":       feedbackID,
		"transcriptLength": len(transcript),
	})

	doc := FormatTranscript(transcript)
	emitter.Processing(ctx, "ai_feedback_analysis_start", map[string]any{
		"documentLength": len(doc),
	})

	result, err := t.scorer.Score(ctx, doc)
	if err != nil {
		emitter.Error(ctx, err.Error(), map[string]any{
			"action":      "generateFeedback",
			"interviewId": interviewID,
			"feedbackId":  feedbackID,
		})
		return "", false
	}

	emitter.APICall(ctx, "ai/generate-feedback", map[string]any{
		"interviewId":    interviewID,
		"documentLength": len(doc),
	}, map[string]any{
		"totalScore":      result.TotalScore,
		"categoriesCount": len(result.CategoryScores),
	})

	emitter.Processing(ctx, "ai_feedback_analysis_success", map[string]any{
		"totalScore":        result.TotalScore,
		"strengthsCount":    len(result.Strengths),
		"improvementsCount": len(result.AreasForImprovement),
	})

	fb := domain.Feedback{
		InterviewID:         interviewID,
		UserID:              userID,
		TotalScore:          result.TotalScore,
		CategoryScores:      result.CategoryScores,
		Strengths:           result.Strengths,
		AreasForImprovement: result.AreasForImprovement,
		FinalAssessment:     result.FinalAssessment,
		CreatedAt:           t.clock().UTC().Format(time.RFC3339),
	}

	if feedbackID != "" {
		emitter.Processing(ctx, "updating_existing_feedback", map[string]any{"feedbackId": feedbackID})
	} else {
		emitter.Processing(ctx, "creating_new_feedback", nil)
	}

	id, err := t.feedback.CreateOrUpdateFeedback(ctx, feedbackID, fb)
	if err != nil {
		emitter.Error(ctx, err.Error(), map[string]any{
			"action":      "saveFeedback",
			"interviewId": interviewID,
			"feedbackId":  feedbackID,
		})
		return "", false
	}

	emitter.Processing(ctx, "feedback_save_success", map[string]any{
		"feedbackId":  id,
		"interviewId": interviewID,
		"totalScore":  fb.TotalScore,
	})
	return id, true
}

// FormatTranscript renders the transcript as an evaluator-readable
// document: one role-prefixed line per utterance, arrival order.
func FormatTranscript(transcript []domain.Utterance) string {
	lines := make([]string, 0, len(transcript))
	for _, u := range transcript {
		lines = append(lines, fmt.Sprintf("- %s: %s", u.Role, u.Content))
	}
	return strings.Join(lines, "\n")
}

// FormatQuestions renders interview questions for the engine variable:
// a newline-joined, hyphen-prefixed list.
func FormatQuestions(questions []string) string {
	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		lines = append(lines, "- "+q)
	}
	return strings.Join(lines, "\n")
}
