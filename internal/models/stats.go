package models

// Stats is the data of GET /admin/stats.
type Stats struct {
	TotalUsers     int64 `json:"totalUsers"`
	BannedUsers    int64 `json:"bannedUsers"`
	TotalQuestions int64 `json:"totalQuestions"`
	TotalAnswers   int64 `json:"totalAnswers"`
}
