package api

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/charnn/internal/corpus"
	"github.com/samcharles93/charnn/internal/rnn"
	"github.com/samcharles93/charnn/internal/snapshot"
)

func newTestServer(t *testing.T) (*echo.Echo, *rnn.CharNet) {
	t.Helper()
	c, err := corpus.FromText("hello world, hello there")
	if err != nil {
		t.Fatalf("corpus: %v", err)
	}
	net, err := rnn.New(rnn.Config{Vocab: c.Alphabet.Size(), Hidden: 8, Layers: 2, LearningRate: 0.1, Seed: 4})
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	for p := 0; ; p += 6 {
		in, tg, ok := c.Window(p, 6)
		if !ok {
			break
		}
		net.Train(in, tg)
	}
	net.ResetHidden()
	char, err := rnn.NewCharNet(net, c.Alphabet)
	if err != nil {
		t.Fatalf("char net: %v", err)
	}
	server := NewServer(Config{
		Net:     char,
		Run:     &snapshot.Info{RunID: "run-1", Step: 42, SmoothLoss: 3.5},
		Version: "test",
	})
	e := echo.New()
	server.Register(e)
	return e, char
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

type errorEnvelope struct {
	Error ResponseError `json:"error"`
}

func sameHidden(a, b [][]float64) bool {
	for l := range a {
		for i := range a[l] {
			if math.Float64bits(a[l][i]) != math.Float64bits(b[l][i]) {
				return false
			}
		}
	}
	return true
}

func TestHealthAndModel(t *testing.T) {
	t.Parallel()
	e, char := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status: got %d", rec.Code)
	}
	if h := decodeBody[HealthResponse](t, rec); h.Status != "ok" || h.Version != "test" {
		t.Fatalf("health: got %+v", h)
	}

	rec = doJSON(t, e, http.MethodGet, "/v1/model", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("model status: got %d", rec.Code)
	}
	m := decodeBody[ModelResponse](t, rec)
	if m.Vocab != char.Alphabet.Size() || len(m.Alphabet) != m.Vocab {
		t.Fatalf("model vocab: got %d (%d symbols) want %d", m.Vocab, len(m.Alphabet), char.Alphabet.Size())
	}
	if m.Variant != "stacked" || m.Layers != 2 || m.Hidden != 8 {
		t.Fatalf("model config: got %+v", m)
	}
	if m.Run == nil || m.Run.ID != "run-1" || m.Run.Step != 42 {
		t.Fatalf("model run: got %+v", m.Run)
	}
}

func TestSampleWithoutAdvanceIsRepeatable(t *testing.T) {
	t.Parallel()
	e, char := newTestServer(t)
	before := char.Net.Hidden()

	body := `{"seed":"hel","length":30,"temperature":0.7,"rng_seed":9}`
	first := doJSON(t, e, http.MethodPost, "/v1/samples", body)
	if first.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", first.Code, first.Body.String())
	}
	second := doJSON(t, e, http.MethodPost, "/v1/samples", body)
	a := decodeBody[SampleResponse](t, first)
	b := decodeBody[SampleResponse](t, second)

	if a.Text != b.Text {
		t.Fatalf("texts differ: %q vs %q", a.Text, b.Text)
	}
	if got := len([]rune(a.Text)); got != 30 {
		t.Fatalf("text length: got %d want 30", got)
	}
	if !strings.HasPrefix(a.ID, "sample_") || a.ID == b.ID {
		t.Fatalf("ids: %q %q", a.ID, b.ID)
	}
	if a.Object != "sample" || a.Advanced || a.Temperature != 0.7 || a.Seed != "hel" {
		t.Fatalf("sample fields: got %+v", a)
	}
	if a.Entropy <= 0 || a.Entropy > math.Log(float64(char.Alphabet.Size()))+1e-9 {
		t.Fatalf("entropy: got %v", a.Entropy)
	}
	if !sameHidden(before, char.Net.Hidden()) {
		t.Fatal("non-advancing sample changed the hidden state")
	}
}

func TestSampleAdvanceAndReset(t *testing.T) {
	t.Parallel()
	e, char := newTestServer(t)
	before := char.Net.Hidden()

	rec := doJSON(t, e, http.MethodPost, "/v1/samples", `{"seed":"h","length":5,"advance":true,"rng_seed":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if s := decodeBody[SampleResponse](t, rec); !s.Advanced {
		t.Fatal("advanced flag not set")
	}
	if sameHidden(before, char.Net.Hidden()) {
		t.Fatal("advancing sample left the hidden state unchanged")
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/state/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status: got %d", rec.Code)
	}
	for l, h := range char.Net.Hidden() {
		for i, v := range h {
			if v != 0 {
				t.Fatalf("hidden[%d][%d]: got %v want 0", l, i, v)
			}
		}
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/state/advance", `{"text":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("advance status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if s := decodeBody[StateResponse](t, rec); s.Fed != 5 || s.Action != "advance" {
		t.Fatalf("advance: got %+v", s)
	}
}

func TestSampleRejectsBadRequests(t *testing.T) {
	t.Parallel()
	e, char := newTestServer(t)
	before := char.Net.Hidden()

	cases := []struct {
		name    string
		path    string
		body    string
		errType string
		param   string
	}{
		{"unknown symbol", "/v1/samples", `{"seed":"hex","advance":true}`, "alphabet_error", ""},
		{"unknown symbol in advance", "/v1/state/advance", `{"text":"zz"}`, "alphabet_error", ""},
		{"empty seed", "/v1/samples", `{"seed":""}`, "invalid_request_error", "seed"},
		{"hot temperature", "/v1/samples", `{"seed":"h","temperature":1.5}`, "invalid_request_error", "temperature"},
		{"zero temperature", "/v1/samples", `{"seed":"h","temperature":0}`, "invalid_request_error", "temperature"},
		{"zero length", "/v1/samples", `{"seed":"h","length":0}`, "invalid_request_error", "length"},
		{"huge length", "/v1/samples", `{"seed":"h","length":1000000}`, "invalid_request_error", "length"},
		{"malformed body", "/v1/samples", `{"seed":`, "invalid_request_error", ""},
	}
	for _, tc := range cases {
		rec := doJSON(t, e, http.MethodPost, tc.path, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status got %d want 400 body=%s", tc.name, rec.Code, rec.Body.String())
		}
		env := decodeBody[errorEnvelope](t, rec)
		if env.Error.Type != tc.errType || env.Error.Param != tc.param {
			t.Fatalf("%s: error got %+v want type %s param %q", tc.name, env.Error, tc.errType, tc.param)
		}
	}
	if !sameHidden(before, char.Net.Hidden()) {
		t.Fatal("rejected requests changed the hidden state")
	}
}

func TestSampleLifecycle(t *testing.T) {
	t.Parallel()
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/samples", `{"seed":"wor","length":4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status: got %d body=%s", rec.Code, rec.Body.String())
	}
	created := decodeBody[SampleResponse](t, rec)

	rec = doJSON(t, e, http.MethodGet, "/v1/samples/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status: got %d", rec.Code)
	}
	if got := decodeBody[SampleResponse](t, rec); got.Text != created.Text {
		t.Fatalf("get text: got %q want %q", got.Text, created.Text)
	}

	rec = doJSON(t, e, http.MethodGet, "/v1/samples", "")
	if list := decodeBody[SampleList](t, rec); len(list.Data) != 1 || list.Data[0].ID != created.ID {
		t.Fatalf("list: got %+v", list)
	}

	rec = doJSON(t, e, http.MethodDelete, "/v1/samples/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status: got %d", rec.Code)
	}
	rec = doJSON(t, e, http.MethodGet, "/v1/samples/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d want 404", rec.Code)
	}
}

func TestSampleStoreEvictsOldest(t *testing.T) {
	t.Parallel()
	s := NewSampleStore(2)
	for _, id := range []string{"a", "b", "c"} {
		s.Save(SampleResponse{ID: id})
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("oldest sample was not evicted")
	}
	list := s.List()
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Fatalf("list: got %+v", list)
	}
	if !s.Delete("b") || s.Delete("b") {
		t.Fatal("delete should succeed once")
	}
}

func TestServesUIWhenConfigured(t *testing.T) {
	t.Parallel()
	_, char := newTestServer(t)

	bare := echo.New()
	NewServer(Config{Net: char}).Register(bare)
	if rec := doJSON(t, bare, http.MethodGet, "/", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("without UI: got %d want 404", rec.Code)
	}

	e := echo.New()
	NewServer(Config{Net: char, UI: []byte("<html>ui</html>")}).Register(e)
	rec := doJSON(t, e, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "<html>ui</html>" {
		t.Fatalf("with UI: got %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type: got %q", ct)
	}
}
