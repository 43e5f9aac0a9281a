// Package careflow provides a top-level convenience entry point that wires
// the whole customer-service mesh inside a single process.
//
// Usage:
//
//	import "github.com/BaSui01/careflow"
//
//	mesh, err := careflow.NewMesh(ctx, careflow.WithProvider(myProvider))
//	defer mesh.Close()
//	resp, err := mesh.Query(ctx, api.QueryRequest{Text: "Get customer info for ID 1"})
//
// NewMesh opens an in-memory SQLite database, seeds the demo dataset, runs
// the customer database tool server over in-process pipes and connects the
// three agents directly, no HTTP involved. Integration tests and the demo
// scenarios use it to exercise the full routing path; production deployments
// run each agent as its own process via cmd/careflow instead.
package careflow

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/careflow/a2a"
	"github.com/BaSui01/careflow/agent/data"
	"github.com/BaSui01/careflow/agent/router"
	"github.com/BaSui01/careflow/agent/support"
	"github.com/BaSui01/careflow/api"
	"github.com/BaSui01/careflow/classify"
	"github.com/BaSui01/careflow/customerdb"
	"github.com/BaSui01/careflow/internal/cache"
	"github.com/BaSui01/careflow/internal/database"
	"github.com/BaSui01/careflow/llm"
	"github.com/BaSui01/careflow/mcp"
)

// Addresses the in-process dispatcher routes on. They stand in for the
// downstream base URLs of a networked deployment.
const (
	dataAddr    = "mesh://data"
	supportAddr = "mesh://support"
)

// Mesh is the in-process assembly of the three agents plus their backing
// tool server and database.
type Mesh struct {
	Router  *router.Agent
	Data    *data.Agent
	Support *support.Agent

	toolClient *mcp.StdioClient
	pool       *database.PoolManager
	cancel     context.CancelFunc
	logger     *zap.Logger
}

type options struct {
	provider        llm.Provider
	model           string
	classifier      classify.Classifier
	driver          string
	dsn             string
	cache           *cache.Manager
	dispatchTimeout time.Duration
	seed            bool
	logger          *zap.Logger
}

// Option configures the mesh created by [NewMesh].
type Option func(*options)

// WithProvider sets the LLM provider used for intent classification and
// support answer drafting. Without one the mesh falls back to the keyword
// classifier and template answers.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithClassifier replaces the default classifier entirely.
func WithClassifier(c classify.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// WithDatabase points the mesh at a specific database instead of the
// default shared in-memory SQLite instance.
func WithDatabase(driver, dsn string) Option {
	return func(o *options) {
		o.driver = driver
		o.dsn = dsn
	}
}

// WithCache enables classification result caching.
func WithCache(manager *cache.Manager) Option {
	return func(o *options) { o.cache = manager }
}

// WithDispatchTimeout bounds each downstream agent call.
func WithDispatchTimeout(timeout time.Duration) Option {
	return func(o *options) { o.dispatchTimeout = timeout }
}

// WithoutSeed skips writing the demo dataset on startup.
func WithoutSeed() Option {
	return func(o *options) { o.seed = false }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewMesh assembles the full mesh in-process.
func NewMesh(ctx context.Context, opts ...Option) (*Mesh, error) {
	o := options{
		driver: "sqlite",
		dsn:    "file:careflow_mesh?mode=memory&cache=shared",
		seed:   true,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.Open(o.driver, o.dsn, o.logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pool, err := database.NewPoolManager(db, database.DefaultPoolConfig(), o.logger)
	if err != nil {
		return nil, fmt.Errorf("init pool: %w", err)
	}

	if err := customerdb.AutoMigrate(db); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	if o.seed {
		if err := customerdb.Seed(ctx, db); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed demo dataset: %w", err)
		}
	}

	// 工具服务器跑在进程内管道上, 协议与独立子进程完全一致
	store := customerdb.NewStore(pool, o.logger)
	toolServer := mcp.NewServer("careflow-customerdb", "in-process", o.logger)
	if err := customerdb.RegisterTools(toolServer, store); err != nil {
		pool.Close()
		return nil, fmt.Errorf("register tools: %w", err)
	}

	serveCtx, cancel := context.WithCancel(context.Background())

	clientReader, serverWriter := io.Pipe()
	serverReader, clientWriter := io.Pipe()
	go func() {
		defer serverWriter.Close()
		_ = toolServer.Serve(serveCtx, serverReader, serverWriter)
	}()

	toolClient := mcp.NewStdioClient(mcp.ClientConfig{
		ClientName:    "careflow-mesh",
		ClientVersion: "in-process",
		Logger:        o.logger,
	})
	if err := toolClient.Attach(ctx, clientReader, clientWriter); err != nil {
		cancel()
		pool.Close()
		return nil, fmt.Errorf("attach tool client: %w", err)
	}

	cleanup := func() {
		_ = toolClient.Close()
		cancel()
		pool.Close()
	}

	dataAgent, err := data.New(data.Config{
		Tools:  toolClient,
		Logger: o.logger,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	supportAgent, err := support.New(support.Config{
		Tools:    toolClient,
		Provider: o.provider,
		Model:    o.model,
		Logger:   o.logger,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	classifier := o.classifier
	if classifier == nil {
		keyword := classify.NewKeywordClassifier(o.logger)
		if o.provider != nil {
			classifier = classify.NewChain(
				classify.NewLLMClassifier(o.provider, o.model, o.logger),
				keyword,
				o.logger,
			)
		} else {
			classifier = keyword
		}
	}

	dispatcher := &localDispatcher{
		handlers: map[string]handlerFunc{
			dataAddr:    dataAgent.Handle,
			supportAddr: supportAgent.Handle,
		},
		cards: map[string]*a2a.AgentCard{
			dataAddr:    dataAgent.Card(dataAddr),
			supportAddr: supportAgent.Card(supportAddr),
		},
	}

	routerAgent, err := router.New(router.Config{
		Classifier:      classifier,
		Client:          dispatcher,
		DataAgentURL:    dataAddr,
		SupportAgentURL: supportAddr,
		DispatchTimeout: o.dispatchTimeout,
		Cache:           o.cache,
		Logger:          o.logger,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	return &Mesh{
		Router:     routerAgent,
		Data:       dataAgent,
		Support:    supportAgent,
		toolClient: toolClient,
		pool:       pool,
		cancel:     cancel,
		logger:     o.logger,
	}, nil
}

// Query routes a customer query through the mesh.
func (m *Mesh) Query(ctx context.Context, req api.QueryRequest) (*api.QueryResponse, error) {
	return m.Router.Query(ctx, req)
}

// Tools exposes the tool client for direct tool calls in tests.
func (m *Mesh) Tools() *mcp.StdioClient {
	return m.toolClient
}

// Close shuts the tool server pipes and the database pool down.
func (m *Mesh) Close() error {
	err := m.toolClient.Close()
	m.cancel()
	if cerr := m.pool.Close(); err == nil {
		err = cerr
	}
	return err
}

// handlerFunc is the A2A entry point of an in-process agent.
type handlerFunc func(ctx context.Context, msg *a2a.Message) (*a2a.Message, error)

// localDispatcher satisfies router.Dispatcher by invoking agent handlers
// directly instead of going over HTTP.
type localDispatcher struct {
	handlers map[string]handlerFunc
	cards    map[string]*a2a.AgentCard
}

func (d *localDispatcher) Send(ctx context.Context, baseURL string, msg *a2a.Message) (*a2a.Message, error) {
	handler, ok := d.handlers[baseURL]
	if !ok {
		return nil, fmt.Errorf("no agent registered at %s", baseURL)
	}
	return handler(ctx, msg)
}

func (d *localDispatcher) Discover(_ context.Context, baseURL string) (*a2a.AgentCard, error) {
	card, ok := d.cards[baseURL]
	if !ok {
		return nil, fmt.Errorf("no agent registered at %s", baseURL)
	}
	return card, nil
}
