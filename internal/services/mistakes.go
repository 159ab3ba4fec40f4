package services

import (
	"sort"

	"examprep/internal/grading"
	"examprep/internal/models"
)

// ExtractMistakes derives the mistake set from attempt records, one entry per
// question id, most recently missed first.
//
// Records are visited newest first; on equal timestamps the collection order wins.
// The first miss seen for a question sets the snapshot, the time and the answer;
// every miss increments the count.
func ExtractMistakes(records []models.AttemptRecord) []models.MistakeEntry {
	ordered := make([]models.AttemptRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.After(ordered[j].Timestamp)
	})

	entries := []models.MistakeEntry{}
	index := map[string]int{}

	for ri := range ordered {
		r := &ordered[ri]
		for qi, q := range r.Questions {
			answer := r.AnswerFor(q.ID)
			if grading.Judge(q, answer, r.ResultAt(qi)) {
				continue
			}

			if i, ok := index[q.ID]; ok {
				entries[i].Count++
				continue
			}

			index[q.ID] = len(entries)
			entries = append(entries, models.MistakeEntry{
				Question:      q.Normalized(),
				Count:         1,
				LastWrongTime: r.Timestamp,
				UserAnswer:    answer,
				RecordID:      r.ID,
				ExerciseID:    r.ExerciseID,
				ExerciseTitle: r.ExerciseTitle,
				Topics:        append(models.StringList{}, r.TopicsFor(q)...),
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastWrongTime.After(entries[j].LastWrongTime)
	})
	return entries
}
