package domain

// ReviewStats — сводка для дашборда консоли за последний час.
type ReviewStats struct {
	TotalReviews          int64            `json:"total_reviews"`
	DeferredReviews       int64            `json:"deferred_reviews"`
	DeferRatio            float64          `json:"defer_ratio"`
	PendingApprovals      int64            `json:"pending_approvals"`
	AvgDecisionConfidence float64          `json:"avg_decision_confidence"`
	Recommendations       map[string]int64 `json:"recommendations"`
	HourlyActivity        []ActivityPoint  `json:"hourly_activity"`
}

type ActivityPoint struct {
	Hour  string `json:"hour"`
	Count int64  `json:"count"`
}
