package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "trustgate"
)

// Ключи для Sets и блокировок (состояние)
const (
	RedisKeyBlockedExperts  = RedisNamespace + ":experts:blocked_set"
	RedisKeyLockSeedWeights = RedisNamespace + ":lock:seed:weights"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanApprovalDecisions — префикс каналов решений оператора (HITL).
	RedisChanApprovalDecisions = RedisNamespace + ":approvals"
	RedisChanReviewDeferred    = RedisNamespace + ":reviews:deferred"
	RedisChanWeightsUpdate     = RedisNamespace + ":reliability:weights-update"
	RedisChanExpertKillSwitch  = RedisNamespace + ":experts:kill-switch-signal"
)

// ApprovalDecisionChannel — канал, в который публикуется решение по конкретному ревью.
func ApprovalDecisionChannel(reviewID string) string {
	return fmt.Sprintf("%s:review:%s", RedisChanApprovalDecisions, reviewID)
}
