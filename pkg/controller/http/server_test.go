package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/esr/pkg/backend/kv"
	"github.com/secmon-lab/esr/pkg/domain/interfaces"
	"github.com/secmon-lab/esr/pkg/service/encoder"
	"github.com/secmon-lab/esr/pkg/service/metabolism"
	"github.com/secmon-lab/esr/pkg/usecase"

	httpctrl "github.com/secmon-lab/esr/pkg/controller/http"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	enc, err := encoder.New(map[string]interfaces.Backend{"kv": kv.New("kv")})
	gt.NoError(t, err).Required()
	uc := usecase.New(enc)
	worker := metabolism.New(uc)

	srv := httptest.NewServer(httpctrl.New(uc, httpctrl.WithMetabolism(worker)))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body map[string]any) (*http.Response, map[string]any) {
	t.Helper()

	data, err := json.Marshal(body)
	gt.NoError(t, err).Required()

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	gt.NoError(t, err).Required()
	return resp, decodeJSON(t, resp)
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Get(url)
	gt.NoError(t, err).Required()
	return resp, decodeJSON(t, resp)
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]any
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&body)).Required()
	return body
}

func TestHealth(t *testing.T) {
	srv := newServer(t)

	resp, body := getJSON(t, srv.URL+"/health")
	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
	gt.Value(t, body["status"]).Equal("ok")
}

func TestStoreAndRecallThought(t *testing.T) {
	srv := newServer(t)

	resp, body := postJSON(t, srv.URL+"/api/thoughts", map[string]any{
		"content":      "the demo went well",
		"thought_type": "observation",
		"confidence":   0.8,
		"namespace":    "work",
	})
	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
	gt.Value(t, body["status"]).Equal("stored")
	gt.Value(t, body["thought_type"]).Equal("OBSERVATION")
	gt.Value(t, body["timestamp"]).NotNil()

	memoryID, ok := body["memory_id"].(string)
	gt.True(t, ok)

	resp, body = getJSON(t, srv.URL+"/api/thoughts/"+memoryID)
	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
	gt.Value(t, body["status"]).Equal("success")

	thought, ok := body["thought"].(map[string]any)
	gt.True(t, ok)
	gt.Value(t, thought["content"]).Equal("the demo went well")
}

func TestStoreThoughtValidation(t *testing.T) {
	srv := newServer(t)

	resp, body := postJSON(t, srv.URL+"/api/thoughts", map[string]any{
		"content": "",
	})
	gt.Number(t, resp.StatusCode).Equal(http.StatusBadRequest)
	gt.Value(t, body["status"]).Equal("error")
}

func TestRecallUnknownThoughtIsNotAnError(t *testing.T) {
	srv := newServer(t)

	resp, body := getJSON(t, srv.URL+"/api/thoughts/no-such-id")
	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
	gt.Value(t, body["status"]).Equal("not_found")
}

func TestSearch(t *testing.T) {
	srv := newServer(t)

	_, _ = postJSON(t, srv.URL+"/api/thoughts", map[string]any{"content": "kafka consumer lag is rising"})
	_, _ = postJSON(t, srv.URL+"/api/thoughts", map[string]any{"content": "coffee machine is broken"})

	resp, body := postJSON(t, srv.URL+"/api/search", map[string]any{
		"query": "kafka",
	})
	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
	gt.Value(t, body["status"]).Equal("success")
	gt.Value(t, body["count"]).Equal(float64(1))
}

func TestSearchRequiresQuery(t *testing.T) {
	srv := newServer(t)

	resp, _ := postJSON(t, srv.URL+"/api/search", map[string]any{})
	gt.Number(t, resp.StatusCode).Equal(http.StatusBadRequest)
}

func TestAssociationsAndContext(t *testing.T) {
	srv := newServer(t)

	_, first := postJSON(t, srv.URL+"/api/thoughts", map[string]any{"content": "root cause was a bad config"})
	_, second := postJSON(t, srv.URL+"/api/thoughts", map[string]any{"content": "the outage lasted an hour"})

	from := first["memory_id"].(string)
	to := second["memory_id"].(string)

	resp, body := postJSON(t, srv.URL+"/api/associations", map[string]any{
		"from":     from,
		"to":       to,
		"type":     "cause",
		"strength": 0.7,
	})
	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
	gt.Value(t, body["status"]).Equal("created")

	resp, body = postJSON(t, srv.URL+"/api/context", map[string]any{
		"topic": "config",
		"depth": 2,
	})
	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
	gt.Value(t, body["status"]).Equal("success")
	gt.Value(t, body["count"]).Equal(float64(2))

	contextBody, ok := body["context"].(map[string]any)
	gt.True(t, ok)
	primary, ok := contextBody["primary"].([]any)
	gt.True(t, ok)
	gt.Array(t, primary).Length(1)
	associated, ok := contextBody["associated"].([]any)
	gt.True(t, ok)
	gt.Array(t, associated).Length(1)
}

func TestBuildContextRequiresTopic(t *testing.T) {
	srv := newServer(t)

	resp, _ := postJSON(t, srv.URL+"/api/context", map[string]any{"depth": 2})
	gt.Number(t, resp.StatusCode).Equal(http.StatusBadRequest)
}

func TestBuildContextUnknownTopic(t *testing.T) {
	srv := newServer(t)

	resp, body := postJSON(t, srv.URL+"/api/context", map[string]any{"topic": "nothing stored"})
	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
	gt.Value(t, body["status"]).Equal("no_data")
}

func TestSelfAssociationRejected(t *testing.T) {
	srv := newServer(t)

	_, stored := postJSON(t, srv.URL+"/api/thoughts", map[string]any{"content": "navel gazing"})
	id := stored["memory_id"].(string)

	resp, _ := postJSON(t, srv.URL+"/api/associations", map[string]any{
		"from": id,
		"to":   id,
	})
	gt.Number(t, resp.StatusCode).Equal(http.StatusBadRequest)
}

func TestAssociationWithUnknownThought(t *testing.T) {
	srv := newServer(t)

	_, stored := postJSON(t, srv.URL+"/api/thoughts", map[string]any{"content": "known thought"})
	id := stored["memory_id"].(string)

	resp, body := postJSON(t, srv.URL+"/api/associations", map[string]any{
		"from": id,
		"to":   "ghost",
	})
	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
	gt.Value(t, body["status"]).Equal("not_found")
}

func TestNamespaces(t *testing.T) {
	srv := newServer(t)

	_, _ = postJSON(t, srv.URL+"/api/thoughts", map[string]any{"content": "a", "namespace": "work"})

	resp, body := getJSON(t, srv.URL+"/api/namespaces")
	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
	gt.Value(t, body["count"]).Equal(float64(1))
}

func TestMetabolismStatusAndReflect(t *testing.T) {
	srv := newServer(t)

	resp, body := getJSON(t, srv.URL+"/api/metabolism")
	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
	gt.Value(t, body["status"]).Equal("success")

	metabolismBody, ok := body["metabolism"].(map[string]any)
	gt.True(t, ok)
	gt.Value(t, metabolismBody["phase"]).Equal("IDLE")

	resp, body = postJSON(t, srv.URL+"/api/metabolism/reflect", map[string]any{})
	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
	gt.Value(t, body["status"]).Equal("success")
	gt.Value(t, body["report"]).NotNil()
}

func TestMetabolismDisabled(t *testing.T) {
	enc, err := encoder.New(map[string]interfaces.Backend{"kv": kv.New("kv")})
	gt.NoError(t, err).Required()
	srv := httptest.NewServer(httpctrl.New(usecase.New(enc)))
	t.Cleanup(srv.Close)

	_, body := getJSON(t, srv.URL+"/api/metabolism")
	gt.Value(t, body["status"]).Equal("disabled")

	_, body = postJSON(t, srv.URL+"/api/metabolism/reflect", map[string]any{})
	gt.Value(t, body["status"]).Equal("disabled")
}

func TestStats(t *testing.T) {
	srv := newServer(t)

	_, _ = postJSON(t, srv.URL+"/api/thoughts", map[string]any{"content": "counted"})

	resp, body := getJSON(t, srv.URL+"/api/stats")
	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)

	encoderStats, ok := body["encoder"].(map[string]any)
	gt.True(t, ok)
	gt.Value(t, encoderStats["total_stores"]).Equal(float64(1))
}
