package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/uporders-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := map[string]struct {
		res  Resource
		want string
	}{
		"short topic":        {Resource{KindTopic, "order-requests"}, "projects/p1/topics/order-requests"},
		"short subscription": {Resource{KindSubscription, " worker "}, "projects/p1/subscriptions/worker"},
		"full name":          {Resource{KindTopic, "projects/other/topics/t"}, "projects/other/topics/t"},
		"wrong kind in name": {Resource{KindSubscription, "projects/other/topics/t"}, "projects/p1/subscriptions/projects/other/topics/t"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, resourceName("p1", tc.res))
		})
	}
}

func TestResourcesFollowConfig(t *testing.T) {
	cfg := config.PubSubConfig{OrdersTopic: "in", OrdersSubscription: "in-worker", OutcomesTopic: "out"}
	assert.Equal(t, Resource{KindTopic, "in"}, OrderRequestsPublisher(cfg))
	assert.Equal(t, Resource{KindSubscription, "in-worker"}, OrderRequestsSubscriber(cfg))
	assert.Equal(t, Resource{KindTopic, "out"}, OutcomesPublisher(cfg))
}

func TestNewClientValidatesBeforeDialing(t *testing.T) {
	ctx := context.Background()
	_, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{}, nil, Resource{KindTopic, "t"})
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil)
	require.Error(t, err)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil, Resource{KindSubscription, " "})
	require.EqualError(t, err, "pubsub subscription name is required")
}

func TestNilClientPing(t *testing.T) {
	var c *Client
	require.Error(t, c.Ping(context.Background()))
	require.NoError(t, c.Close())
	assert.Nil(t, c.Publisher("t"))
}
