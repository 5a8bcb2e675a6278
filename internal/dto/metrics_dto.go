package dto

// Correctness counts feedback judgements across a set of essays.
type Correctness struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
}

// ClassStats aggregates processed essays of one assignment.
type ClassStats struct {
	AvgTTR      float64     `json:"avg_ttr"`
	AvgFreqRank float64     `json:"avg_freq_rank"`
	Correctness Correctness `json:"correctness"`
	EssayCount  int         `json:"essay_count"`
}

// ClassMetricsResponse is returned by GET /metrics/class/:assignment_id.
type ClassMetricsResponse struct {
	AssignmentID string     `json:"assignment_id"`
	Stats        ClassStats `json:"stats"`
	UpdatedAt    string     `json:"updated_at"`
}

// StudentStats aggregates processed essays of one student.
type StudentStats struct {
	AvgTTR         float64 `json:"avg_ttr"`
	AvgWordCount   float64 `json:"avg_word_count"`
	AvgUniqueWords float64 `json:"avg_unique_words"`
	AvgFreqRank    float64 `json:"avg_freq_rank"`
	TotalEssays    int     `json:"total_essays"`
	Trend          string  `json:"trend"`
	LastEssayDate  *string `json:"last_essay_date"`
}

// StudentMetricsResponse is returned by GET /metrics/student/:student_id.
type StudentMetricsResponse struct {
	StudentID string       `json:"student_id"`
	Stats     StudentStats `json:"stats"`
	UpdatedAt string       `json:"updated_at"`
}
