package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"
	"github.com/sony/gobreaker"
)

const slackUserNotFound = "users_not_found"

// SlackOptions tunes the Slack API client.
type SlackOptions struct {
	// APIURL overrides the Slack API base URL. It must end with a slash.
	APIURL string

	// Timeout bounds each API call. Defaults to 10s.
	Timeout time.Duration

	// BreakerFailures opens the breaker after this many consecutive failures.
	// Defaults to 5.
	BreakerFailures uint32
}

// SlackClient resolves owners by e-mail and posts direct messages through the
// Slack Web API. Calls go through a circuit breaker so an outage fails fast
// instead of timing out once per budget.
type SlackClient struct {
	api     *slack.Client
	breaker *gobreaker.CircuitBreaker
}

var (
	_ Resolver = (*SlackClient)(nil)
	_ Sender   = (*SlackClient)(nil)
)

// NewSlackClient creates a Slack Web API client authenticated with a bot token.
func NewSlackClient(token string, opts SlackOptions) *SlackClient {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}

	apiOpts := []slack.Option{slack.OptionHTTPClient(&http.Client{Timeout: opts.Timeout})}
	if opts.APIURL != "" {
		apiOpts = append(apiOpts, slack.OptionAPIURL(opts.APIURL))
	}

	failures := opts.BreakerFailures
	return &SlackClient{
		api: slack.New(token, apiOpts...),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "slack",
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrOwnerNotFound)
			},
		}),
	}
}

// Resolve looks up the Slack user ID registered for email.
func (s *SlackClient) Resolve(ctx context.Context, email string) (string, error) {
	id, err := s.breaker.Execute(func() (interface{}, error) {
		user, err := s.api.GetUserByEmailContext(ctx, email)
		if err != nil {
			if isSlackUserNotFound(err) {
				return "", ErrOwnerNotFound
			}
			return "", fmt.Errorf("lookup slack user %s: %w", email, err)
		}
		return user.ID, nil
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}

// Send posts text as a direct message to the Slack user or channel ID.
func (s *SlackClient) Send(ctx context.Context, address, text string) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		_, _, err := s.api.PostMessageContext(ctx, address,
			slack.MsgOptionText(text, false),
			slack.MsgOptionAsUser(true),
		)
		if err != nil {
			return nil, fmt.Errorf("post slack message: %w", err)
		}
		return nil, nil
	})
	return err
}

func isSlackUserNotFound(err error) bool {
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return slackErr.Err == slackUserNotFound
	}
	return err.Error() == slackUserNotFound
}

// SlackWebhook broadcasts alerts to a Slack incoming webhook.
type SlackWebhook struct {
	url    string
	client *http.Client
}

var _ Broadcaster = (*SlackWebhook)(nil)

// NewSlackWebhook creates a broadcaster for an incoming webhook URL.
func NewSlackWebhook(url string) *SlackWebhook {
	return &SlackWebhook{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *SlackWebhook) Name() string { return "slack_webhook" }

func (w *SlackWebhook) Broadcast(ctx context.Context, alert Alert) error {
	msg := &slack.WebhookMessage{Text: alert.Text}
	if err := slack.PostWebhookCustomHTTPContext(ctx, w.url, w.client, msg); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}
