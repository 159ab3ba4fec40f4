package models

import "time"

// CategoryStats aggregates attempts sharing a tag. TotalScore sums the attempt percentages.
type CategoryStats struct {
	Count        int     `json:"count"`
	TotalScore   float64 `json:"totalScore"`
	AverageScore float64 `json:"averageScore"`
}

// RecentScore is one attempt in the recent scores list
type RecentScore struct {
	RecordID      string    `json:"recordId,omitempty"`
	ExerciseID    string    `json:"exerciseId"`
	ExerciseTitle string    `json:"exerciseTitle"`
	Score         float64   `json:"score"`
	Timestamp     time.Time `json:"timestamp"`
}

// TopicAccuracy is the answer accuracy for one topic, as a percentage
type TopicAccuracy struct {
	Topic    string  `json:"topic"`
	Accuracy float64 `json:"accuracy"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
}

// UserStatistics is the cached aggregate for one user
type UserStatistics struct {
	UserID              string                    `json:"userId"`
	TotalExercises      int                       `json:"totalExercises"`
	TotalQuestions      float64                   `json:"totalQuestions"`
	CorrectQuestions    int                       `json:"correctQuestions"`
	TotalScore          float64                   `json:"totalScore"`
	AverageScore        float64                   `json:"averageScore"`
	ExercisesByCategory map[string]*CategoryStats `json:"exercisesByCategory"`
	RecentScores        []RecentScore             `json:"recentScores"`
	StrongTopics        []TopicAccuracy           `json:"strongTopics"`
	WeakTopics          []TopicAccuracy           `json:"weakTopics"`
	// TopicsComputedAt is when strong and weak topics were last ranked
	TopicsComputedAt time.Time `json:"topicsComputedAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewUserStatistics returns zero-valued statistics with empty, non-nil collections
func NewUserStatistics(userID string) *UserStatistics {
	s := &UserStatistics{UserID: userID}
	s.EnsureCollections()
	return s
}

// EnsureCollections replaces nil collections with empty ones
func (s *UserStatistics) EnsureCollections() {
	if s.ExercisesByCategory == nil {
		s.ExercisesByCategory = map[string]*CategoryStats{}
	}
	for tag, c := range s.ExercisesByCategory {
		if c == nil {
			s.ExercisesByCategory[tag] = &CategoryStats{}
		}
	}
	if s.RecentScores == nil {
		s.RecentScores = []RecentScore{}
	}
	if s.StrongTopics == nil {
		s.StrongTopics = []TopicAccuracy{}
	}
	if s.WeakTopics == nil {
		s.WeakTopics = []TopicAccuracy{}
	}
}

// Counts reports whether the attempt with recordID is among the recent scores
func (s *UserStatistics) Counts(recordID string) bool {
	if recordID == "" {
		return false
	}
	for _, rs := range s.RecentScores {
		if rs.RecordID == recordID {
			return true
		}
	}
	return false
}
