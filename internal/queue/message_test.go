package queue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTaskShape(t *testing.T) {
	kwargs := map[string]interface{}{
		"stop_distance":        0.1,
		"stop_count_limit":     1,
		"stop_cooloff_period":  30,
		"limit_distance":       1,
	}
	msg, err := BuildTask("worker_main", "backtest.engine.backtest_redux", kwargs)
	require.NoError(t, err)

	assert.Equal(t, "utf-8", msg.ContentEncoding)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "py", msg.Headers.Lang)
	assert.Equal(t, "backtest.engine.backtest_redux", msg.Headers.Task)
	assert.Equal(t, msg.Headers.ID, msg.Headers.RootID)
	assert.Equal(t, msg.Headers.ID, msg.Properties.CorrelationID)
	assert.Equal(t, 2, msg.Properties.DeliveryMode)
	assert.Equal(t, "worker_main", msg.Properties.DeliveryInfo.RoutingKey)
	assert.Equal(t, "base64", msg.Properties.BodyEncoding)

	_, err = uuid.Parse(msg.Headers.ID)
	assert.NoError(t, err)
	_, err = uuid.Parse(msg.Properties.DeliveryTag)
	assert.NoError(t, err)
}

func TestDecodeKwargsRoundTrips(t *testing.T) {
	kwargs := map[string]interface{}{
		"stop_distance":       0.1,
		"stop_count_limit":    float64(1),
		"stop_cooloff_period": float64(30),
		"limit_distance":      float64(1),
	}
	msg, err := BuildTask("worker_main", "backtest.engine.backtest_redux", kwargs)
	require.NoError(t, err)

	encoded, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, DecodeKwargs(decoded, &got))
	assert.Equal(t, kwargs["stop_distance"], got["stop_distance"])
	assert.Equal(t, kwargs["stop_count_limit"], got["stop_count_limit"])
}
