package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/hirm"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/relation"
	"github.com/pclean-go/pclean/internal/value"
	"github.com/pclean-go/pclean/pkg/config"
)

func newTestHIRM(t *testing.T) *hirm.HIRM {
	t.Helper()
	s := prng.New(1)
	h := hirm.New(1.0)
	rel := relation.NewCleanRelation("flag", []*relation.Domain{relation.NewDomain("animal", 1.0)}, func() distribution.Distribution {
		return distribution.NewBernoulli(1, 1)
	})
	h.AddRelation(s, "flag", rel, hirm.Schema{})
	d := rel.DomainsList()[0]
	d.Retain(0, s)
	rel.Incorporate(s, []int{0}, value.Bool(true))
	return h
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(newTestHIRM(t), config.StatusAPIConfig{Host: "localhost", Port: 0})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestListRelationsEndpoint(t *testing.T) {
	srv := NewServer(newTestHIRM(t), config.StatusAPIConfig{Host: "localhost", Port: 0})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/relations", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Relations []string `json:"relations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Relations) != 1 || body.Relations[0] != "flag" {
		t.Fatalf("expected [flag], got %v", body.Relations)
	}
}

func TestGetRelationEndpointNotFound(t *testing.T) {
	srv := NewServer(newTestHIRM(t), config.StatusAPIConfig{Host: "localhost", Port: 0})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/relations/missing", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
