package main

import (
	"database/sql"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/draftroom/go/internal/feed"
	"github.com/mcdev12/draftroom/go/internal/gateway"
	"github.com/mcdev12/draftroom/go/internal/httpapi"
	"github.com/mcdev12/draftroom/go/internal/hub"
	"github.com/mcdev12/draftroom/go/internal/recommend"
	"github.com/mcdev12/draftroom/go/internal/reconcile"
	"github.com/mcdev12/draftroom/go/internal/relay"
	"github.com/mcdev12/draftroom/go/internal/session"
	"github.com/mcdev12/draftroom/go/internal/store"
)

// Services holds the wired application graph.
type Services struct {
	App      *session.App
	Adapter  *reconcile.Adapter
	Hub      *hub.Hub
	Handlers *httpapi.Handlers
	WS       *gateway.WebSocketHandler
	Feed     *feed.Consumer
	Relay    *relay.Publisher
}

// setupServices wires the dependency chain. database may be nil; the session
// App then runs memory-only.
func setupServices(config *Config, database *sql.DB) (*Services, error) {
	clock := clockwork.NewRealClock()
	eventHub := hub.New(clock)

	var repo session.Repository
	if database != nil {
		repo = store.NewStore(database)
	}

	app := session.NewApp(eventHub, repo, clock)
	eventHub.SetSnapshotProvider(app)

	adapter := reconcile.NewAdapter(app)

	var recommender recommend.Port
	if config.Recommend.URL != "" {
		recommender = recommend.NewHTTPClient(config.Recommend.URL)
	}

	connectionManager := gateway.NewConnectionManager(eventHub, gateway.DefaultConnectionConfig())

	services := &Services{
		App:      app,
		Adapter:  adapter,
		Hub:      eventHub,
		Handlers: httpapi.NewHandlers(app, adapter, recommender),
		WS:       gateway.NewWebSocketHandler(connectionManager),
	}

	if config.Feed.Enabled {
		feedConfig := feed.DefaultConsumerConfig()
		if config.Feed.URL != "" {
			feedConfig.URL = config.Feed.URL
		}
		if config.Feed.Stream != "" {
			feedConfig.StreamName = config.Feed.Stream
		}
		if config.Feed.Consumer != "" {
			feedConfig.ConsumerName = config.Feed.Consumer
		}
		if config.Feed.SubjectFilter != "" {
			feedConfig.SubjectFilter = config.Feed.SubjectFilter
		}

		consumer, err := feed.NewConsumer(adapter, app, feedConfig)
		if err != nil {
			return nil, err
		}
		services.Feed = consumer
	}

	if config.Relay.Enabled {
		relayConfig := relay.DefaultPublisherConfig()
		if config.Relay.URL != "" {
			relayConfig.URL = config.Relay.URL
		}
		if config.Relay.SubjectPrefix != "" {
			relayConfig.SubjectPrefix = config.Relay.SubjectPrefix
		}

		publisher, err := relay.NewPublisher(eventHub, relayConfig)
		if err != nil {
			return nil, err
		}
		services.Relay = publisher
	}

	return services, nil
}
