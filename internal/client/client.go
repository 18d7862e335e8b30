// Package client is the SDK entry point. It composes the REST client, the
// gateway connection and one cache manager per entity kind, and keeps those
// caches in sync with gateway events.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Guliveer/guildkit/internal/auth"
	"github.com/Guliveer/guildkit/internal/cache"
	"github.com/Guliveer/guildkit/internal/constants"
	"github.com/Guliveer/guildkit/internal/gateway"
	"github.com/Guliveer/guildkit/internal/logger"
	"github.com/Guliveer/guildkit/internal/model"
	"github.com/Guliveer/guildkit/internal/rest"
	"github.com/Guliveer/guildkit/internal/workerpool"
)

// Options configures a Client.
type Options struct {
	Token  string
	APIURL string

	Gateway gateway.Config

	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// DefaultCache applies to every kind missing from Cache.
	DefaultCache cache.Config
	Cache        map[string]cache.Config

	PrefetchWorkers int

	Logger     *logger.Logger
	Dialer     gateway.Dialer
	HTTPClient *http.Client
}

// DefaultOptions returns options for the production API with unbounded LRU
// caches for every kind.
func DefaultOptions() Options {
	return Options{
		APIURL:          constants.APIURL,
		Gateway:         gateway.DefaultConfig(),
		HTTPTimeout:     constants.DefaultHTTPTimeout,
		MaxRetries:      constants.DefaultMaxRetries,
		RetryBackoff:    constants.DefaultRetryBackoff,
		DefaultCache:    cache.DefaultConfig(),
		PrefetchWorkers: constants.DefaultPrefetchWorkers,
	}
}

func (o Options) cacheConfig(kind string) cache.Config {
	cfg, ok := o.Cache[kind]
	if !ok {
		cfg = o.DefaultCache
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = o.fetchTimeout()
	}
	return cfg
}

// fetchTimeout covers every REST attempt of one fetch plus its retry delays.
func (o Options) fetchTimeout() time.Duration {
	timeout := o.HTTPTimeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	retries := max(o.MaxRetries, 0)
	return time.Duration(retries+1)*timeout + o.RetryBackoff<<retries
}

// Client is a connected bot session.
type Client struct {
	Servers  *ServerManager
	Channels *ChannelManager
	Messages *MessageManager
	Members  *MemberManager
	Bans     *BanManager
	Notes    *NoteManager
	Users    *UserManager

	auth    *auth.TokenProvider
	rest    *rest.Client
	gateway *gateway.Manager
	log     *logger.Logger
	workers int
}

// New builds a Client. It does not connect; call Connect or Run.
func New(opts Options) (*Client, error) {
	provider, err := auth.NewTokenProvider(opts.Token)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	restOpts := []rest.Option{rest.WithLogger(log.WithComponent("rest"))}
	if opts.HTTPClient != nil {
		restOpts = append(restOpts, rest.WithHTTPClient(opts.HTTPClient))
	}
	if opts.APIURL != "" {
		restOpts = append(restOpts, rest.WithBaseURL(opts.APIURL))
	}
	if opts.HTTPTimeout > 0 {
		restOpts = append(restOpts, rest.WithTimeout(opts.HTTPTimeout))
	}
	if opts.MaxRetries > 0 || opts.RetryBackoff > 0 {
		backoff := opts.RetryBackoff
		if backoff <= 0 {
			backoff = constants.DefaultRetryBackoff
		}
		restOpts = append(restOpts, rest.WithRetries(opts.MaxRetries, backoff))
	}
	rc := rest.NewClient(provider, restOpts...)

	workers := opts.PrefetchWorkers
	if workers <= 0 {
		workers = constants.DefaultPrefetchWorkers
	}

	c := &Client{
		Servers:  newServerManager(rc, opts.cacheConfig(KindServers)),
		Channels: newChannelManager(rc, opts.cacheConfig(KindChannels)),
		Messages: newMessageManager(rc, opts.cacheConfig(KindMessages)),
		Members:  newMemberManager(rc, opts.cacheConfig(KindMembers)),
		Bans:     newBanManager(rc, opts.cacheConfig(KindBans)),
		Notes:    newNoteManager(rc, opts.cacheConfig(KindNotes)),
		Users:    newUserManager(rc, opts.cacheConfig(KindUsers)),
		auth:     provider,
		rest:     rc,
		gateway:  gateway.NewManager(opts.Gateway, provider, opts.Dialer, log.WithComponent("gateway")),
		log:      log.WithComponent("client"),
		workers:  workers,
	}

	// Registered first so user handlers observe caches already updated.
	c.gateway.Subscribe(gateway.HandlerFunc(c.apply))

	return c, nil
}

// On registers h for every gateway event and returns a function that removes it.
func (c *Client) On(h gateway.Handler) (unsubscribe func()) {
	return c.gateway.Subscribe(h)
}

// Connect starts the gateway connection loop in the background.
func (c *Client) Connect(ctx context.Context) {
	c.gateway.Connect(ctx)
}

// Disconnect closes the gateway connection and stops reconnecting.
func (c *Client) Disconnect() {
	c.gateway.Disconnect()
}

// Run keeps the gateway connected until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	return c.gateway.Run(ctx)
}

// Gateway returns the underlying connection manager.
func (c *Client) Gateway() *gateway.Manager {
	return c.gateway
}

// REST returns the underlying API client.
func (c *Client) REST() *rest.Client {
	return c.rest
}

// SetToken replaces the bot token. REST calls pick it up immediately, the
// gateway on its next handshake.
func (c *Client) SetToken(token string) error {
	if err := c.auth.SetToken(token); err != nil {
		return err
	}
	c.log.Event(context.Background(), model.EventTokenRotated, "Bot token replaced")
	return nil
}

// GatewayState returns the connection state name.
func (c *Client) GatewayState() string {
	return c.gateway.State().String()
}

// LastConnected returns when the gateway last welcomed this client.
func (c *Client) LastConnected() time.Time {
	return c.gateway.LastConnected()
}

// CacheStats returns the cache counters of every kind.
func (c *Client) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		KindServers:  c.Servers.Stats(),
		KindChannels: c.Channels.Stats(),
		KindMessages: c.Messages.Stats(),
		KindMembers:  c.Members.Stats(),
		KindBans:     c.Bans.Stats(),
		KindNotes:    c.Notes.Stats(),
		KindUsers:    c.Users.Stats(),
	}
}

// PrefetchMembers loads the given members of a server into the cache,
// fetching at most PrefetchWorkers at a time. With no userIDs the full member
// list of the server is loaded. Members that fail to load are skipped and
// their errors joined into the returned error.
func (c *Client) PrefetchMembers(ctx context.Context, serverID string, userIDs ...string) ([]model.Member, error) {
	if len(userIDs) == 0 {
		summaries, err := c.Members.List(ctx, serverID)
		if err != nil {
			return nil, err
		}
		for _, u := range summaries {
			userIDs = append(userIDs, u.ID)
		}
	}

	results := workerpool.Collect(ctx, userIDs, c.workers, func(ctx context.Context, userID string) (model.Member, error) {
		return c.Members.Fetch(ctx, model.MemberKey{ServerID: serverID, UserID: userID}, true)
	})

	members := make([]model.Member, 0, len(results))
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		members = append(members, r.Value)
		if c.Users.Caching() {
			_ = c.Users.Set(r.Value.User.ID, r.Value.User)
		}
	}

	c.log.Debug("Prefetched members", "server", serverID, "loaded", len(members), "failed", len(errs))
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return members, errors.Join(errs...)
}
