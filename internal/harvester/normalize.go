package harvester

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/codecatalog/harvester/internal/catalog"
	"github.com/codecatalog/harvester/internal/leetcode"
)

// remoteStats mirrors the JSON-encoded stats string carried by detail records.
type remoteStats struct {
	TotalAccepted   int64   `json:"totalAccepted"`
	TotalSubmission int64   `json:"totalSubmission"`
	AcRate          float64 `json:"acRate"`
}

// parseStats decodes the nested stats payload. An empty payload yields zeros
// without error (the field is optional at the source); a present but
// undecodable payload returns zeros and the decode error so the caller can
// apply the strict/lenient policy.
func parseStats(raw string) (catalog.Stats, error) {
	if raw == "" {
		return catalog.Stats{}, nil
	}
	var decoded remoteStats
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return catalog.Stats{}, fmt.Errorf("decode stats payload: %w", err)
	}
	return catalog.Stats{
		AcceptedCount:   decoded.TotalAccepted,
		SubmissionCount: decoded.TotalSubmission,
		AcceptanceRate:  decoded.AcRate,
	}, nil
}

func parseProblemID(frontendID string) (int64, error) {
	id, err := strconv.ParseInt(frontendID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frontend question id %q: %w", frontendID, err)
	}
	return id, nil
}

func tagsFrom(topicTags []leetcode.TopicTag) ([]string, []catalog.Tag) {
	slugs := make([]string, 0, len(topicTags))
	tags := make([]catalog.Tag, 0, len(topicTags))
	for _, t := range topicTags {
		slugs = append(slugs, t.Slug)
		tags = append(tags, catalog.Tag{Slug: t.Slug, Name: t.LocalizedName()})
	}
	return slugs, tags
}

// problemFromSummary normalizes a list-query record. Content stays empty and
// the submission counts default to zero; the acceptance rate comes from the
// summary's acRate field.
func problemFromSummary(q leetcode.QuestionSummary) (catalog.Problem, []catalog.Tag, error) {
	id, err := parseProblemID(q.FrontendQuestionID)
	if err != nil {
		return catalog.Problem{}, nil, err
	}
	difficulty, err := catalog.ParseDifficulty(q.Difficulty)
	if err != nil {
		return catalog.Problem{}, nil, err
	}
	slugs, tags := tagsFrom(q.TopicTags)
	return catalog.Problem{
		ProblemID:      id,
		Title:          q.Title,
		Slug:           q.TitleSlug,
		Difficulty:     difficulty,
		IsPremium:      q.PaidOnly != nil && *q.PaidOnly,
		AcceptanceRate: q.AcRate,
		TagSlugs:       slugs,
	}, tags, nil
}

// problemFromDetail normalizes a detail-query record, preferring localized
// title and content over the canonical variants. In strict mode a present
// but undecodable stats payload fails the item; lenient mode zero-fills.
func problemFromDetail(q leetcode.QuestionDetail, strict bool) (catalog.Problem, []catalog.Tag, error) {
	id, err := parseProblemID(q.QuestionFrontendID)
	if err != nil {
		return catalog.Problem{}, nil, err
	}
	difficulty, err := catalog.ParseDifficulty(q.Difficulty)
	if err != nil {
		return catalog.Problem{}, nil, err
	}

	stats, err := parseStats(q.Stats)
	if err != nil && strict {
		return catalog.Problem{}, nil, err
	}

	title := q.Title
	if q.TranslatedTitle != "" {
		title = q.TranslatedTitle
	}
	content := q.Content
	if q.TranslatedContent != "" {
		content = q.TranslatedContent
	}

	slugs, tags := tagsFrom(q.TopicTags)
	return catalog.Problem{
		ProblemID:       id,
		Title:           title,
		Slug:            q.TitleSlug,
		Difficulty:      difficulty,
		IsPremium:       q.PaidOnly != nil && *q.PaidOnly,
		Content:         content,
		AcceptanceRate:  stats.AcceptanceRate,
		SubmissionCount: stats.SubmissionCount,
		AcceptedCount:   stats.AcceptedCount,
		TagSlugs:        slugs,
	}, tags, nil
}
