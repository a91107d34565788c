package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/engine"
	"github.com/xela07ax/trustgate/internal/infra"
	"go.uber.org/zap"
)

type fakeBus struct {
	mu         sync.Mutex
	published  []string // "channel|message"
	set        map[string]struct{}
	publishErr error
	setErr     error
}

func newFakeBus() *fakeBus {
	return &fakeBus{set: make(map[string]struct{})}
}

func (b *fakeBus) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return redis.NewIntResult(0, b.publishErr)
	}
	b.published = append(b.published, channel+"|"+message.(string))
	return redis.NewIntResult(1, nil)
}

func (b *fakeBus) SAdd(_ context.Context, _ string, members ...interface{}) *redis.IntCmd {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.setErr != nil {
		return redis.NewIntResult(0, b.setErr)
	}
	for _, m := range members {
		b.set[m.(string)] = struct{}{}
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (b *fakeBus) SRem(_ context.Context, _ string, members ...interface{}) *redis.IntCmd {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.setErr != nil {
		return redis.NewIntResult(0, b.setErr)
	}
	for _, m := range members {
		delete(b.set, m.(string))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (b *fakeBus) SMembers(_ context.Context, _ string) *redis.StringSliceCmd {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.setErr != nil {
		return redis.NewStringSliceResult(nil, b.setErr)
	}
	res := make([]string, 0, len(b.set))
	for m := range b.set {
		res = append(res, m)
	}
	return redis.NewStringSliceResult(res, nil)
}

type memApprovalRepo struct {
	items map[string]*domain.ApprovalRequest
}

func (m *memApprovalRepo) GetApprovalByID(_ context.Context, id string) (*domain.ApprovalRequest, error) {
	if a, ok := m.items[id]; ok {
		return a, nil
	}
	return nil, domain.ErrApprovalNotFound
}

func (m *memApprovalRepo) FindApprovals(_ context.Context, status domain.ApprovalStatus) ([]*domain.ApprovalRequest, error) {
	var res []*domain.ApprovalRequest
	for _, a := range m.items {
		if status == "" || a.Status == status {
			res = append(res, a)
		}
	}
	return res, nil
}

func (m *memApprovalRepo) UpdateApprovalStatus(_ context.Context, id string, status domain.ApprovalStatus, reviewerID, comment string) (string, error) {
	a, ok := m.items[id]
	if !ok {
		return "", domain.ErrApprovalNotFound
	}
	if err := a.CanTransitionTo(status); err != nil {
		return "", err
	}
	a.Status = status
	a.ReviewerID = &reviewerID
	a.Comment = &comment
	return a.ReviewID, nil
}

func newApprovalFixture() (*ApprovalService, *memApprovalRepo, *fakeBus) {
	repo := &memApprovalRepo{items: map[string]*domain.ApprovalRequest{
		"ap-1": {ID: "ap-1", ReviewID: "rev-1", Status: domain.StatusPending},
	}}
	bus := newFakeBus()
	return NewApprovalService(repo, bus, zap.NewNop()), repo, bus
}

func TestDecideApproval_PublishesOnReviewChannel(t *testing.T) {
	svc, repo, bus := newApprovalFixture()

	require.NoError(t, svc.DecideApproval(context.Background(), "ap-1", true, "alice", "looks fine"))

	assert.Equal(t, domain.StatusApproved, repo.items["ap-1"].Status)
	assert.Equal(t, "alice", *repo.items["ap-1"].ReviewerID)
	assert.Equal(t, []string{infra.ApprovalDecisionChannel("rev-1") + "|APPROVED"}, bus.published)
}

func TestDecideApproval_ExactlyOnce(t *testing.T) {
	svc, _, bus := newApprovalFixture()
	ctx := context.Background()

	require.NoError(t, svc.DecideApproval(ctx, "ap-1", false, "alice", ""))
	err := svc.DecideApproval(ctx, "ap-1", true, "bob", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.Len(t, bus.published, 1)

	err = svc.DecideApproval(ctx, "missing", true, "bob", "")
	assert.ErrorIs(t, err, domain.ErrApprovalNotFound)
}

func TestDecideApproval_SignalFailureKeepsDecision(t *testing.T) {
	svc, repo, bus := newApprovalFixture()
	bus.publishErr = errors.New("redis down")

	require.NoError(t, svc.DecideApproval(context.Background(), "ap-1", false, "alice", ""))
	assert.Equal(t, domain.StatusRejected, repo.items["ap-1"].Status)
}

func TestGetApprovals(t *testing.T) {
	svc, _, _ := newApprovalFixture()
	ctx := context.Background()

	list, err := svc.GetApprovals(ctx, "pending")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = svc.GetApprovals(ctx, "APPROVED")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = svc.GetApprovals(ctx, "maybe")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

type memWeights struct {
	saved map[domain.AgentType]float64
	err   error
}

func (m *memWeights) GetAgentWeights(context.Context) (map[domain.AgentType]float64, error) {
	return m.saved, m.err
}

func (m *memWeights) SaveAgentWeights(_ context.Context, w map[domain.AgentType]float64) error {
	if m.err != nil {
		return m.err
	}
	m.saved = w
	return nil
}

func newReliabilityFixture(t *testing.T) (*ReliabilityService, *engine.ReliabilityHolder, *memWeights, *fakeBus) {
	t.Helper()
	e, err := engine.NewReliabilityEngine(engine.DefaultReliabilityConfig(), zap.NewNop())
	require.NoError(t, err)
	holder := engine.NewReliabilityHolder(e)
	store := &memWeights{}
	bus := newFakeBus()
	return NewReliabilityService(holder, store, bus, zap.NewNop()), holder, store, bus
}

func TestUpdateWeights_PersistsAppliesAndSignals(t *testing.T) {
	svc, holder, store, bus := newReliabilityFixture(t)
	weights := map[domain.AgentType]float64{domain.AgentSecurityAnalysis: 2}

	require.NoError(t, svc.UpdateWeights(context.Background(), weights))

	assert.Equal(t, weights, store.saved)
	assert.Equal(t, weights, holder.Current().Weights())
	assert.Equal(t, weights, svc.GetWeights())
	assert.Equal(t, []string{infra.RedisChanWeightsUpdate + "|refresh"}, bus.published)
}

func TestUpdateWeights_RejectsInvalidBeforeSave(t *testing.T) {
	svc, holder, store, bus := newReliabilityFixture(t)
	before := holder.Current().Weights()

	err := svc.UpdateWeights(context.Background(), map[domain.AgentType]float64{domain.AgentSecurityAnalysis: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidWeight)
	assert.Nil(t, store.saved)
	assert.Empty(t, bus.published)
	assert.Equal(t, before, holder.Current().Weights())
}

func TestUpdateWeights_StoreFailureKeepsCurrent(t *testing.T) {
	svc, holder, store, _ := newReliabilityFixture(t)
	store.err = errors.New("pg down")
	before := holder.Current().Weights()

	err := svc.UpdateWeights(context.Background(), map[domain.AgentType]float64{domain.AgentSecurityAnalysis: 3})
	require.Error(t, err)
	assert.Equal(t, before, holder.Current().Weights())
}

func TestExpertControl_BlockUnblock(t *testing.T) {
	bus := newFakeBus()
	svc := NewExpertControlService(bus, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.Block(ctx, domain.AgentSecurityAnalysis))
	require.NoError(t, svc.Block(ctx, domain.AgentLogicAnalysis))

	blocked, err := svc.Blocked(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"logic_analysis", "security_analysis"}, blocked)

	require.NoError(t, svc.Unblock(ctx, domain.AgentSecurityAnalysis))
	blocked, err = svc.Blocked(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"logic_analysis"}, blocked)

	assert.Equal(t, []string{
		infra.RedisChanExpertKillSwitch + "|security_analysis:on",
		infra.RedisChanExpertKillSwitch + "|logic_analysis:on",
		infra.RedisChanExpertKillSwitch + "|security_analysis:off",
	}, bus.published)
}

func TestExpertControl_Errors(t *testing.T) {
	bus := newFakeBus()
	svc := NewExpertControlService(bus, zap.NewNop())
	ctx := context.Background()

	assert.ErrorIs(t, svc.Block(ctx, ""), domain.ErrInvalidRequest)
	assert.ErrorIs(t, svc.Block(ctx, "a:b"), domain.ErrInvalidRequest)

	bus.setErr = errors.New("redis down")
	require.Error(t, svc.Block(ctx, domain.AgentSecurityAnalysis))
	assert.Empty(t, bus.published)
}
