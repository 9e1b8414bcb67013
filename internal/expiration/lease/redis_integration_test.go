//go:build integration

package lease_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"carinsurance/internal/expiration/lease"
	"carinsurance/pkg/testutil/containers"
)

type RedisLeaseSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisLeaseSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLeaseSuite))
}

func (s *RedisLeaseSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisLeaseSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLeaseSuite) newLease(ttl time.Duration) *lease.RedisLease {
	l, err := lease.NewRedisLease(s.redis.Client, "carinsurance:test-lease", ttl)
	s.Require().NoError(err)
	return l
}

func (s *RedisLeaseSuite) TestOnlyOneHolderAtATime() {
	ctx := context.Background()
	first := s.newLease(time.Minute)
	second := s.newLease(time.Minute)

	ok, err := first.Acquire(ctx)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = second.Acquire(ctx)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(first.Release(ctx))

	ok, err = second.Acquire(ctx)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *RedisLeaseSuite) TestReleaseDoesNotDropAnotherHoldersLease() {
	ctx := context.Background()
	first := s.newLease(50 * time.Millisecond)
	second := s.newLease(time.Minute)

	ok, err := first.Acquire(ctx)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Require().Eventually(func() bool {
		ok, err := second.Acquire(ctx)
		return err == nil && ok
	}, 2*time.Second, 20*time.Millisecond)

	s.Require().NoError(first.Release(ctx))

	exists, err := s.redis.Client.Exists(ctx, "carinsurance:test-lease").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists)
}

func (s *RedisLeaseSuite) TestReleaseWithoutAcquireIsNoop() {
	s.NoError(s.newLease(time.Minute).Release(context.Background()))
}
