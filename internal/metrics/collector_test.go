package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector tests
// =============================================================================

func TestNewCollector(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.proposalsTotal)
	assert.NotNil(t, collector.talliesTotal)
	assert.NotNil(t, collector.sessionsActive)
	assert.NotNil(t, collector.workerLaunches)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordHTTPRequest("GET", "/proposals", 200, 100*time.Millisecond, 1024, 2048)

	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)

	collector.RecordHTTPRequest("GET", "/proposals", 200, 50*time.Millisecond, 512, 1024)

	newCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.GreaterOrEqual(t, newCount, count)
}

func TestCollector_RecordGovernance(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordProposal("configuration", "create")
	collector.RecordVote("priority")
	collector.RecordTally("configuration", "winner", 20*time.Millisecond)
	collector.SetPendingProposals("strategy-a", 3)

	assert.Greater(t, testutil.CollectAndCount(collector.proposalsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.votesTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.talliesTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.proposalsPending), 0)
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.talliesTotal.WithLabelValues("configuration", "winner")))
}

func TestCollector_RecordTraining(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.SetActiveSessions(2)
	collector.SetLiveParticipants("session-1", 4)
	collector.RecordRound("session-1", 30*time.Second)
	collector.RecordRound("session-1", 0) // first round has no previous duration
	collector.RecordWorkerLaunch("session-1", "success")
	collector.RecordBarrierWait("session-1", 2*time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.sessionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.roundsTotal.WithLabelValues("session-1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.workerLaunches.WithLabelValues("session-1", "success")))
	assert.Greater(t, testutil.CollectAndCount(collector.barrierWait), 0)
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordCacheHit("redis")
	collector.RecordCacheMiss("redis")

	hitCount := testutil.CollectAndCount(collector.cacheHits)
	assert.Greater(t, hitCount, 0)

	missCount := testutil.CollectAndCount(collector.cacheMisses)
	assert.Greater(t, missCount, 0)
}

func TestCollector_RecordDatabaseQuery(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordDBQuery("postgres", "SELECT", 20*time.Millisecond)

	count := testutil.CollectAndCount(collector.dbQueryDuration)
	assert.Greater(t, count, 0)
}

func TestCollector_UpdateConnectionPool(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordDBConnections("postgres", 10, 5)

	openCount := testutil.CollectAndCount(collector.dbConnectionsOpen)
	assert.Greater(t, openCount, 0)

	idleCount := testutil.CollectAndCount(collector.dbConnectionsIdle)
	assert.Greater(t, idleCount, 0)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.RecordHTTPRequest("GET", "/proposals", 200, 100*time.Millisecond, 1024, 2048)
			collector.RecordVote("decision")
			collector.RecordCacheHit("redis")
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Greater(t, testutil.CollectAndCount(collector.httpRequestsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.votesTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.cacheHits), 0)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(302))
	assert.Equal(t, "4xx", statusCode(409))
	assert.Equal(t, "5xx", statusCode(503))
	assert.Equal(t, "unknown", statusCode(100))
}
