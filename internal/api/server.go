// Package api serves a trained network over HTTP: sampling, state control
// and model metadata.
package api

import (
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/charnn/internal/logits"
	"github.com/samcharles93/charnn/internal/rnn"
	"github.com/samcharles93/charnn/internal/snapshot"
	"github.com/samcharles93/charnn/internal/tensor"
)

const (
	DefaultLength    = 200
	DefaultMaxLength = 10000
)

// Config wires a Server. Net is required; everything else has a default.
type Config struct {
	Net *rnn.CharNet
	// Run describes the snapshot the network was loaded from, if any.
	Run                *snapshot.Info
	DefaultTemperature float64
	DefaultLength      int
	MaxLength          int
	Version            string
	Store              *SampleStore
	// UI, when set, is served as the page at /.
	UI []byte
}

// Server owns the network. Every handler that touches it holds mu, so the
// persistent hidden state advances one request at a time.
type Server struct {
	mu    sync.Mutex
	net   *rnn.CharNet
	seeds *rand.Rand
	probs []float64

	cfg   Config
	store *SampleStore
	clock func() time.Time
}

func NewServer(cfg Config) *Server {
	if cfg.Net == nil {
		panic("api: nil network")
	}
	if !logits.ValidTemperature(cfg.DefaultTemperature) {
		cfg.DefaultTemperature = 1
	}
	if cfg.DefaultLength <= 0 {
		cfg.DefaultLength = DefaultLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	store := cfg.Store
	if store == nil {
		store = NewSampleStore(DefaultStoreCapacity)
	}
	return &Server{
		net:   cfg.Net,
		seeds: rand.New(rand.NewSource(time.Now().UnixNano())),
		probs: make([]float64, cfg.Net.Alphabet.Size()),
		cfg:   cfg,
		store: store,
		clock: time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	if s.cfg.UI != nil {
		e.GET("/", s.handleUI)
	}
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/model", s.handleModel)

	e.POST("/v1/samples", s.handleCreateSample)
	e.GET("/v1/samples", s.handleListSamples)
	e.GET("/v1/samples/:id", s.handleGetSample)
	e.DELETE("/v1/samples/:id", s.handleDeleteSample)

	e.POST("/v1/state/reset", s.handleResetState)
	e.POST("/v1/state/advance", s.handleAdvanceState)
}

func (s *Server) handleUI(c *echo.Context) error {
	return c.Blob(http.StatusOK, "text/html; charset=utf-8", s.cfg.UI)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.cfg.Version})
}

func (s *Server) handleModel(c *echo.Context) error {
	net := s.net.Net
	cfg := net.Config()
	resp := ModelResponse{
		Object:       "model",
		Variant:      cfg.Variant.String(),
		Vocab:        cfg.Vocab,
		Hidden:       cfg.Hidden,
		Layers:       cfg.Layers,
		Params:       net.Params().Count(),
		LearningRate: cfg.LearningRate,
		Alphabet:     s.net.Alphabet.Symbols(),
	}
	if r := s.cfg.Run; r != nil {
		resp.Run = &RunInfo{
			ID:         r.RunID,
			Step:       r.Step,
			Loop:       r.Loop,
			SmoothLoss: r.SmoothLoss,
		}
		if !r.CreatedAt.IsZero() {
			resp.Run.CreatedAt = r.CreatedAt.Unix()
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateSample(c *echo.Context) error {
	req, err := decodeJSON[SampleRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	resp, err := s.sample(req)
	if err != nil {
		return writeRequestError(c, err)
	}
	s.store.Save(resp)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) sample(req SampleRequest) (SampleResponse, error) {
	if req.Seed == "" {
		return SampleResponse{}, newInvalidRequest("seed", "seed must not be empty")
	}
	length := s.cfg.DefaultLength
	if req.Length != nil {
		length = *req.Length
	}
	if length < 1 || length > s.cfg.MaxLength {
		return SampleResponse{}, newInvalidRequest("length",
			fmt.Sprintf("length must be between 1 and %d", s.cfg.MaxLength))
	}
	temp := s.cfg.DefaultTemperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	if !logits.ValidTemperature(temp) {
		return SampleResponse{}, newInvalidRequest("temperature", "temperature must be in (0, 1]")
	}
	ids, err := s.net.Alphabet.Encode(req.Seed)
	if err != nil {
		return SampleResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rngSeed := s.seeds.Int63()
	if req.RNGSeed != nil {
		rngSeed = *req.RNGSeed
	}
	net := s.net.Net
	saved := net.Hidden()
	net.Advance(ids)
	net.NextDistribution(s.probs, temp)
	entropy := tensor.Entropy(s.probs)
	net.SetHidden(saved)

	out := net.SampleIndices(logits.NewSampler(rngSeed), length, ids, temp, req.Advance)
	return SampleResponse{
		ID:          newSampleID(),
		Object:      "sample",
		CreatedAt:   s.clock().Unix(),
		Text:        s.net.Alphabet.Decode(out),
		Seed:        req.Seed,
		Length:      length,
		Temperature: temp,
		Advanced:    req.Advance,
		Entropy:     entropy,
	}, nil
}

func (s *Server) handleListSamples(c *echo.Context) error {
	return c.JSON(http.StatusOK, SampleList{Object: "list", Data: s.store.List()})
}

func (s *Server) handleGetSample(c *echo.Context) error {
	id := c.Param("id")
	resp, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "sample not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteSample(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "sample not found")
	}
	return c.JSON(http.StatusOK, DeleteSampleResp{ID: id, Object: "sample.deleted", Deleted: true})
}

func (s *Server) handleResetState(c *echo.Context) error {
	s.mu.Lock()
	s.net.Net.ResetHidden()
	s.mu.Unlock()
	return c.JSON(http.StatusOK, StateResponse{Object: "state", Action: "reset"})
}

func (s *Server) handleAdvanceState(c *echo.Context) error {
	req, err := decodeJSON[AdvanceRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Text == "" {
		return writeRequestError(c, newInvalidRequest("text", "text must not be empty"))
	}
	s.mu.Lock()
	err = s.net.AdvanceString(req.Text)
	s.mu.Unlock()
	if err != nil {
		return writeRequestError(c, err)
	}
	return c.JSON(http.StatusOK, StateResponse{Object: "state", Action: "advance", Fed: len([]rune(req.Text))})
}
