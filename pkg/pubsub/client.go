package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
)

// Resource names one topic or subscription a binary depends on.
type Resource struct {
	Kind string
	Name string
}

const (
	KindTopic        = "topics"
	KindSubscription = "subscriptions"
)

// Each binary declares the resources it touches; the client checks exactly
// those at startup and on Ping.
func OrderRequestsPublisher(cfg config.PubSubConfig) Resource {
	return Resource{Kind: KindTopic, Name: cfg.OrdersTopic}
}

func OrderRequestsSubscriber(cfg config.PubSubConfig) Resource {
	return Resource{Kind: KindSubscription, Name: cfg.OrdersSubscription}
}

func OutcomesPublisher(cfg config.PubSubConfig) Resource {
	return Resource{Kind: KindTopic, Name: cfg.OutcomesTopic}
}

var errProjectIDRequired = errors.New("gcp project id is required")

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	required  []Resource
}

// NewClient connects to Pub/Sub and fails fast when any required resource
// is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, required ...Resource) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	if len(required) == 0 {
		return nil, errors.New("at least one pubsub resource is required")
	}
	for _, res := range required {
		if strings.TrimSpace(res.Name) == "" {
			return nil, fmt.Errorf("pubsub %s name is required", strings.TrimSuffix(res.Kind, "s"))
		}
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: projectID, cfg: cfg, required: required}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "pubsub_resources", len(required)), "pubsub client initialized")
	}
	return c, nil
}

// Ping checks that every required resource still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	for _, res := range c.required {
		if err := c.exists(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) exists(ctx context.Context, res Resource) error {
	name := resourceName(c.projectID, res)
	var err error
	switch res.Kind {
	case KindTopic:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	case KindSubscription:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
	default:
		return fmt.Errorf("unknown pubsub resource kind %q", res.Kind)
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s does not exist", name)
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", name, err)
	}
	return nil
}

// OrdersSubscription returns the subscriber feeding the fulfillment worker.
func (c *Client) OrdersSubscription() *pubsub.Subscriber {
	return c.client.Subscriber(resourceName(c.projectID, OrderRequestsSubscriber(c.cfg)))
}

// OrdersPublisher returns the publisher for incoming order requests.
func (c *Client) OrdersPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.OrdersTopic)
}

// OutcomesPublisher returns the publisher for fulfillment outcome events.
func (c *Client) OutcomesPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.OutcomesTopic)
}

// Publisher returns a handle for a topic id or full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil || strings.TrimSpace(topic) == "" {
		return nil
	}
	return c.client.Publisher(resourceName(c.projectID, Resource{Kind: KindTopic, Name: topic}))
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a short id to projects/<p>/<kind>/<id>; full names
// pass through.
func resourceName(projectID string, res Resource) string {
	name := strings.TrimSpace(res.Name)
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+res.Kind+"/") {
		return name
	}
	return fmt.Sprintf("projects/%s/%s/%s", projectID, res.Kind, name)
}
