package lease

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestNewRedisLeaseValidation(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	tests := []struct {
		name   string
		client redis.UniversalClient
		key    string
		ttl    time.Duration
	}{
		{"nil client", nil, "k", time.Minute},
		{"empty key", client, "", time.Minute},
		{"zero ttl", client, "k", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedisLease(tt.client, tt.key, tt.ttl)
			assert.Error(t, err)
		})
	}

	l, err := NewRedisLease(client, "k", time.Minute)
	assert.NoError(t, err)
	assert.NotNil(t, l)
}
