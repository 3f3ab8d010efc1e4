package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/sirupsen/logrus"

	"example/comment-search-api/app/config"
	"example/comment-search-api/app/models"
	"example/comment-search-api/auth"
	"example/comment-search-api/billing"
	"example/comment-search-api/gemini"
	"example/comment-search-api/store"
	"example/comment-search-api/usage"
	"example/comment-search-api/usage/sqsqueue"
	"example/comment-search-api/youtube"
)

type CommentFetcher interface {
	FetchPage(ctx context.Context, videoID, pageToken string) (models.CommentPage, error)
}

type CommentSearcher interface {
	Search(ctx context.Context, keyword string, comments []any) (string, error)
}

type BillingProvider interface {
	CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

type LoginFlow interface {
	AuthURL(state string) string
	Complete(ctx context.Context, code string) (models.Profile, error)
}

// Sessions issues tokens at login and verifies them on every request.
type Sessions interface {
	auth.TokenVerifier
	Issue(p models.Profile) (string, error)
}

// Deps are the collaborators the HTTP handlers use. Optional ones are nil
// when their credentials are not configured; the matching routes then
// answer 500 "not configured".
type Deps struct {
	Accounts store.Accounts
	Ledger   *usage.Ledger
	Webhooks *billing.Synchronizer
	Billing  BillingProvider
	Comments CommentFetcher
	Search   CommentSearcher
	Sessions Sessions
	Login    LoginFlow
	Log      logrus.FieldLogger
}

// Container builds Deps once per process.
type Container struct {
	cfg *config.Config
	log *logrus.Logger

	// InlineUsage applies increments on the request goroutine instead of
	// the background worker. Lambda sets it since a frozen sandbox would
	// strand queued increments.
	InlineUsage bool

	once     sync.Once
	deps     *Deps
	err      error
	worker   *usage.Worker
	accounts store.Accounts
}

func NewContainer(cfg *config.Config, log *logrus.Logger) *Container {
	return &Container{cfg: cfg, log: log}
}

// Init builds the dependencies on first call and returns the same result
// on every later call.
func (c *Container) Init(ctx context.Context) (*Deps, error) {
	c.once.Do(func() {
		c.deps, c.err = c.build(ctx)
	})
	return c.deps, c.err
}

// Close stops the usage worker, draining queued increments, then closes
// the store.
func (c *Container) Close() error {
	if c.worker != nil {
		c.worker.Stop()
	}
	if c.accounts != nil {
		return c.accounts.Close()
	}
	return nil
}

func (c *Container) build(ctx context.Context) (*Deps, error) {
	cfg := c.cfg
	deps := &Deps{Log: c.log}

	accounts, err := OpenAccounts(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open account store: %w", err)
	}
	c.accounts = accounts
	deps.Accounts = accounts
	c.log.WithField("driver", cfg.Store.Driver).Info("account store ready")

	sink, err := c.usageSink(ctx, accounts)
	if err != nil {
		return nil, err
	}
	var recorder usage.Recorder
	if c.InlineUsage {
		recorder = usage.SyncRecorder{Sink: sink, Log: c.log}
	} else {
		c.worker = usage.NewWorker(sink, cfg.Usage.Workers, cfg.Usage.Buffer, c.log)
		c.worker.Start()
		recorder = c.worker
	}
	deps.Ledger = usage.NewLedger(accounts, recorder, c.log)

	if cfg.Auth.SecretKey != "" {
		sessions, err := auth.NewSessionTokens(cfg.Auth.SecretKey, cfg.Auth.Algorithm, cfg.Auth.TokenTTL)
		if err != nil {
			return nil, err
		}
		deps.Sessions = sessions
	} else if !cfg.IsLocal() {
		return nil, errors.New("SECRET_KEY must be set outside local")
	} else {
		c.log.Warn("SECRET_KEY not set; protected routes will reject every token")
	}

	if cfg.Auth.GoogleClientID != "" {
		ids, err := auth.NewIDTokenVerifier(cfg.Auth.GoogleClientID, "")
		if err != nil {
			return nil, err
		}
		oauthCfg := auth.NewGoogleOAuthConfig(
			cfg.Auth.GoogleClientID,
			cfg.Auth.GoogleClientSecret,
			cfg.Server.BackendURL+"/auth/callback",
		)
		deps.Login = auth.NewGoogleLogin(oauthCfg, ids)
	} else {
		c.log.Warn("GOOGLE_CLIENT_ID not set; login disabled")
	}

	if cfg.Stripe.WebhookSecret != "" {
		deps.Webhooks = billing.NewSynchronizer(accounts, cfg.Stripe.WebhookSecret, c.log)
	} else {
		c.log.Warn("STRIPE_WEBHOOK_SECRET not set; webhook disabled")
	}
	if cfg.Stripe.SecretKey != "" {
		deps.Billing = billing.NewStripeProvider(cfg.Stripe, cfg.Server.FrontendURL)
	}

	if cfg.YouTube.APIKey != "" {
		yt, err := youtube.New(ctx, cfg.YouTube.APIKey, cfg.YouTube.PageSize)
		if err != nil {
			return nil, err
		}
		deps.Comments = yt
	}

	if cfg.Gemini.APIKey != "" {
		gen, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, err
		}
		deps.Search = gemini.NewFilter(gen)
	}

	return deps, nil
}

// usageSink writes increments straight to the store unless a queue is
// configured, in which case a separate consumer applies them.
func (c *Container) usageSink(ctx context.Context, accounts store.Accounts) (usage.Sink, error) {
	queueURL := c.cfg.Usage.QueueURL
	if queueURL == "" {
		return accounts, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	c.log.WithField("queue_url", queueURL).Info("publishing usage increments to SQS")
	return sqsqueue.NewPublisher(sqs.NewFromConfig(awsCfg), queueURL), nil
}
