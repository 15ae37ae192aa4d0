package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"estimator/internal/submission"
	"estimator/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/gorilla/securecookie"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

type CustomerRepository interface {
	Customers(ctx context.Context) ([]*types.Customer, error)
}

type EstimateReader interface {
	EstimateByID(ctx context.Context, id string) (*types.Estimate, error)
	RevisionsByEstimateID(ctx context.Context, estimateID string) ([]*types.EstimateRevision, error)
	LineItemsByRevisionID(ctx context.Context, revisionID string) ([]*types.LineItem, error)
}

type DocumentRepository interface {
	DocumentByID(ctx context.Context, id string) (*types.Document, error)
	DocumentsByEntity(ctx context.Context, entityType types.EntityType, entityID string) ([]*types.Document, error)
	CreateDocument(ctx context.Context, doc *types.Document) error
	DeleteDocument(ctx context.Context, id string) error
}

type FileStorage interface {
	UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	DeleteFile(ctx context.Context, key string) error
}

type Submitter interface {
	Submit(ctx context.Context, draft types.DraftEstimate, knownCustomers []*types.Customer, status types.EstimateStatus) (*submission.Result, error)
}

type Service struct {
	logger *logrus.Logger
	config *types.Config

	customers CustomerRepository
	estimates EstimateReader
	documents DocumentRepository
	files     FileStorage
	submitter Submitter

	cookie *securecookie.SecureCookie
	now    func() time.Time

	handler http.Handler
	server  *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	customers CustomerRepository,
	estimates EstimateReader,
	documents DocumentRepository,
	files FileStorage,
	submitter Submitter,
) (*Service, error) {
	mux := flow.New()

	hashKey, blockKey, err := cookieKeys(config, logger)
	if err != nil {
		return nil, err
	}

	s := &Service{
		logger:    logger,
		config:    config,
		customers: customers,
		estimates: estimates,
		documents: documents,
		files:     files,
		submitter: submitter,
		cookie:    securecookie.New(hashKey, blockKey),
		now:       time.Now,
		handler:   mux,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			Handler:           mux,
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)

	return s, nil
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests
func (s *Service) Handler() http.Handler {
	return s.handler
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.StripTrailingSlash)
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)

	r.HandleFunc("/customers", s.handleGetCustomers, http.MethodGet)

	r.HandleFunc("/drafts/current", s.handleGetCurrentDraft, http.MethodGet)
	r.HandleFunc("/drafts/current", s.handleDeleteCurrentDraft, http.MethodDelete)

	r.HandleFunc("/estimates/calculate", s.handlePostCalculate, http.MethodPost)
	r.HandleFunc("/estimates", s.handlePostEstimate, http.MethodPost)
	r.HandleFunc("/estimates/:estimateID", s.handleGetEstimate, http.MethodGet)

	r.HandleFunc("/documents", s.handleGetDocuments, http.MethodGet)
	r.HandleFunc("/documents", s.handlePostDocument, http.MethodPost)
	r.HandleFunc("/documents/:documentID", s.handleDeleteDocument, http.MethodDelete)
}

// cookieKeys decodes the configured cookie keys. Outside production a
// missing key is replaced with a random one, which invalidates drafts on
// restart.
func cookieKeys(config *types.Config, logger *logrus.Logger) ([]byte, []byte, error) {
	hashKey, err := base64.StdEncoding.DecodeString(config.CookieHashKey)
	if err != nil {
		return nil, nil, fmt.Errorf("decode COOKIE_HASH_KEY: %w", err)
	}
	blockKey, err := base64.StdEncoding.DecodeString(config.CookieBlockKey)
	if err != nil {
		return nil, nil, fmt.Errorf("decode COOKIE_BLOCK_KEY: %w", err)
	}

	if len(hashKey) == 0 || len(blockKey) == 0 {
		if config.Environment == "production" {
			return nil, nil, fmt.Errorf("set COOKIE_HASH_KEY and COOKIE_BLOCK_KEY")
		}
		logger.Warn("cookie keys not configured, generating ephemeral keys")
		if len(hashKey) == 0 {
			hashKey = securecookie.GenerateRandomKey(32)
		}
		if len(blockKey) == 0 {
			blockKey = securecookie.GenerateRandomKey(32)
		}
	}

	return hashKey, blockKey, nil
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleGetCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.customers.Customers(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to list customers")
		s.internalServerError(w)
		return
	}

	s.writeJSON(w, http.StatusOK, customers)
}
