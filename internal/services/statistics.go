package services

import (
	"slices"
	"sort"
	"time"

	"examprep/internal/config"
	"examprep/internal/grading"
	"examprep/internal/models"
)

// StatisticsOptions tunes the aggregation
type StatisticsOptions struct {
	// RecentScoresLimit caps recentScores
	RecentScoresLimit int
	// TopicMinAnswers is the number of answers a topic needs before it is ranked
	TopicMinAnswers int
	// TopicRankSize is the length of the strong and weak topic lists
	TopicRankSize int
}

// DefaultStatisticsOptions returns the standard limits: 10 recent scores, topics
// ranked after 3 answers, 3 strong and 3 weak topics
func DefaultStatisticsOptions() StatisticsOptions {
	return StatisticsOptions{
		RecentScoresLimit: config.DefaultRecentScoresLimit,
		TopicMinAnswers:   config.DefaultTopicMinAnswers,
		TopicRankSize:     config.DefaultTopicRankSize,
	}
}

// StatisticsOptionsFromConfig reads the options from configuration
func StatisticsOptionsFromConfig(cfg config.StatisticsConfig) StatisticsOptions {
	opts := StatisticsOptions{
		RecentScoresLimit: cfg.RecentScoresLimit,
		TopicMinAnswers:   cfg.TopicMinAnswers,
		TopicRankSize:     cfg.TopicRankSize,
	}
	return opts.withDefaults()
}

func (o StatisticsOptions) withDefaults() StatisticsOptions {
	def := DefaultStatisticsOptions()
	if o.RecentScoresLimit <= 0 {
		o.RecentScoresLimit = def.RecentScoresLimit
	}
	if o.TopicMinAnswers <= 0 {
		o.TopicMinAnswers = def.TopicMinAnswers
	}
	if o.TopicRankSize <= 0 {
		o.TopicRankSize = def.TopicRankSize
	}
	return o
}

type topicTally struct {
	correct int
	total   int
}

// CalculateStatistics recomputes a user's statistics from scratch over their scored
// attempts. This is the source of truth the incremental path must agree with.
// records are most recent first; totals are summed oldest first, in save order, so
// the floating point sums match those built by ApplyRecord exactly.
func CalculateStatistics(records []models.AttemptRecord, userID string, opts StatisticsOptions) *models.UserStatistics {
	opts = opts.withDefaults()
	stats := models.NewUserStatistics(userID)
	topics := map[string]*topicTally{}

	for i := len(records) - 1; i >= 0; i-- {
		r := &records[i]
		if r.UserID != userID || !r.Type.IsScored() {
			continue
		}

		accumulate(stats, r)
		stats.RecentScores = append(stats.RecentScores, recentScoreOf(r))

		for qi, q := range r.Questions {
			correct := grading.Judge(q, r.AnswerFor(q.ID), r.ResultAt(qi))
			for _, topic := range distinct(r.TopicsFor(q)) {
				t, ok := topics[topic]
				if !ok {
					t = &topicTally{}
					topics[topic] = t
				}
				t.total++
				if correct {
					t.correct++
				}
			}
		}
	}

	finishTotals(stats)

	// back to collection order so equal timestamps keep the most recent save first
	slices.Reverse(stats.RecentScores)
	sort.SliceStable(stats.RecentScores, func(i, j int) bool {
		return stats.RecentScores[i].Timestamp.After(stats.RecentScores[j].Timestamp)
	})
	if len(stats.RecentScores) > opts.RecentScoresLimit {
		stats.RecentScores = stats.RecentScores[:opts.RecentScoresLimit]
	}

	now := time.Now().UTC()
	stats.StrongTopics, stats.WeakTopics = rankTopics(topics, opts)
	stats.TopicsComputedAt = now
	stats.UpdatedAt = now
	return stats
}

// ApplyRecord folds one new attempt into cached statistics and reports whether it
// counted. A record already listed in recentScores was counted when the statistics
// were built and is skipped. Strong and weak topics are left as they are; they are
// only ranked by a full recompute.
func ApplyRecord(stats *models.UserStatistics, r *models.AttemptRecord, opts StatisticsOptions) bool {
	if r == nil || !r.Type.IsScored() {
		return false
	}
	opts = opts.withDefaults()
	stats.EnsureCollections()
	if stats.Counts(r.ID) {
		return false
	}

	accumulate(stats, r)
	finishTotals(stats)

	stats.RecentScores = append([]models.RecentScore{recentScoreOf(r)}, stats.RecentScores...)
	if len(stats.RecentScores) > opts.RecentScoresLimit {
		stats.RecentScores = stats.RecentScores[:opts.RecentScoresLimit]
	}
	stats.UpdatedAt = time.Now().UTC()
	return true
}

// accumulate adds a record's running totals and per-tag contributions
func accumulate(stats *models.UserStatistics, r *models.AttemptRecord) {
	stats.TotalExercises++
	stats.TotalScore += r.Results.TotalScore
	stats.TotalQuestions += r.Results.MaxScore
	stats.CorrectQuestions += r.Results.CorrectCount

	pct := r.Results.PercentageValue()
	for _, tag := range distinct(r.Tags) {
		c, ok := stats.ExercisesByCategory[tag]
		if !ok {
			c = &models.CategoryStats{}
			stats.ExercisesByCategory[tag] = c
		}
		c.Count++
		c.TotalScore += pct
	}
}

// finishTotals derives the averages from the running totals
func finishTotals(stats *models.UserStatistics) {
	if stats.TotalQuestions > 0 {
		stats.AverageScore = stats.TotalScore / stats.TotalQuestions * 100
	} else {
		stats.AverageScore = 0
	}
	for _, c := range stats.ExercisesByCategory {
		if c.Count > 0 {
			c.AverageScore = c.TotalScore / float64(c.Count)
		}
	}
}

func recentScoreOf(r *models.AttemptRecord) models.RecentScore {
	return models.RecentScore{
		RecordID:      r.ID,
		ExerciseID:    r.ExerciseID,
		ExerciseTitle: r.ExerciseTitle,
		Score:         r.Results.PercentageValue(),
		Timestamp:     r.Timestamp,
	}
}

// rankTopics orders eligible topics by accuracy, best first, ties by name. Strong
// topics are the head of that order, weak topics the tail with the weakest first.
func rankTopics(topics map[string]*topicTally, opts StatisticsOptions) (strong, weak []models.TopicAccuracy) {
	ranked := []models.TopicAccuracy{}
	for name, t := range topics {
		if t.total < opts.TopicMinAnswers {
			continue
		}
		ranked = append(ranked, models.TopicAccuracy{
			Topic:    name,
			Accuracy: float64(t.correct) / float64(t.total) * 100,
			Correct:  t.correct,
			Total:    t.total,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Accuracy != ranked[j].Accuracy {
			return ranked[i].Accuracy > ranked[j].Accuracy
		}
		return ranked[i].Topic < ranked[j].Topic
	})

	n := opts.TopicRankSize
	if n > len(ranked) {
		n = len(ranked)
	}
	strong = append([]models.TopicAccuracy{}, ranked[:n]...)
	weak = make([]models.TopicAccuracy, 0, n)
	for i := len(ranked) - 1; i >= len(ranked)-n; i-- {
		weak = append(weak, ranked[i])
	}
	return strong, weak
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
