//go:build integration

package locator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"renewals/pkg/testutil/containers"
)

type CachedIntegrationSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestCachedIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedIntegrationSuite))
}

func (s *CachedIntegrationSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *CachedIntegrationSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *CachedIntegrationSuite) TestSecondResolveHitsCache() {
	ctx := context.Background()
	next := &countingResolver{url: "http://wf:8080"}
	c := NewCached(next, s.redis.Client, time.Minute, nil)

	for range 3 {
		url, err := c.Resolve(ctx, "workflow-service")
		s.Require().NoError(err)
		s.Equal("http://wf:8080", url)
	}
	s.EqualValues(1, next.calls.Load())

	ttl, err := s.redis.Client.TTL(ctx, cacheKeyPrefix+"workflow-service").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *CachedIntegrationSuite) TestInvalidateForcesResolution() {
	ctx := context.Background()
	next := &countingResolver{url: "http://wf:8080"}
	c := NewCached(next, s.redis.Client, time.Minute, nil)

	_, err := c.Resolve(ctx, "workflow-service")
	s.Require().NoError(err)
	c.Invalidate(ctx, "workflow-service")
	_, err = c.Resolve(ctx, "workflow-service")
	s.Require().NoError(err)

	s.EqualValues(2, next.calls.Load())
}
