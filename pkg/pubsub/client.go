package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
)

var errProjectIDRequired = errors.New("gcp project id is required")

// Needs lists the Pub/Sub resources a process relies on. Each one is
// checked at startup and on Ping.
type Needs struct {
	DomainTopic   bool
	Notifications bool
	Analytics     bool
}

type resource struct {
	kind string // "topics" or "subscriptions"
	name string
}

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	required  []resource
}

// NewClient connects to Pub/Sub and fails when a needed topic or
// subscription is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, needs Needs, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	required, err := requiredResources(cfg, needs)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	psClient, err := pubsub.NewClient(ctx, projectID, opts...)
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

func requiredResources(cfg config.PubSubConfig, needs Needs) ([]resource, error) {
	var out []resource
	add := func(want bool, kind, name, setting string) error {
		if !want {
			return nil
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("pubsub %s is required", setting)
		}
		out = append(out, resource{kind: kind, name: name})
		return nil
	}
	if err := add(needs.DomainTopic, "topics", cfg.DomainTopic, "domain topic"); err != nil {
		return nil, err
	}
	if err := add(needs.Notifications, "subscriptions", cfg.NotificationSubscription, "notification subscription"); err != nil {
		return nil, err
	}
	if err := add(needs.Analytics, "subscriptions", cfg.AnalyticsSubscription, "analytics subscription"); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks that every needed resource still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	for _, res := range c.required {
		full := c.resourceName(res.kind, res.name)
		var err error
		if res.kind == "topics" {
			_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
		} else {
			_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
		}
		switch {
		case err == nil:
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("pubsub %s %q does not exist", strings.TrimSuffix(res.kind, "s"), res.name)
		default:
			return fmt.Errorf("checking pubsub %s %q: %w", strings.TrimSuffix(res.kind, "s"), res.name, err)
		}
	}
	return nil
}

// Subscription returns a subscriber for a subscription ID or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.resourceName("subscriptions", name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

// NotificationSubscription feeds the mail consumer.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.NotificationSubscription)
}

// AnalyticsSubscription feeds the BigQuery sales sink.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher returns a publisher for a topic ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.resourceName("topics", name)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands an ID into projects/<project>/<kind>/<id>. Names that
// are already fully qualified pass through.
func (c *Client) resourceName(kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" || c == nil {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	if c.projectID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", c.projectID, kind, n)
}
