package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRelayRequest(t *testing.T) {
	counter := relayRequestsTotal.WithLabelValues("eth_callBundle", OutcomeClientError)
	before := testutil.ToFloat64(counter)

	RecordRelayRequest("eth_callBundle", OutcomeClientError, 25*time.Millisecond)
	RecordRelayRequest("eth_callBundle", OutcomeClientError, 5*time.Millisecond)

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
