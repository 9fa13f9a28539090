package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jadehq/jade/pkg/cloudevents"
	"github.com/jadehq/jade/pkg/eventsourcing"
	"github.com/jadehq/jade/pkg/httpapi"
)

type shipOrder struct {
	OrderID  string                 `json:"orderId"`
	Metadata eventsourcing.Metadata `json:"metadata"`
}

func (c *shipOrder) Schema() string                { return "urn:schema:jade:command:order:ship:1" }
func (c *shipOrder) AggregateID() string           { return c.OrderID }
func (c *shipOrder) Meta() *eventsourcing.Metadata { return &c.Metadata }

type okHandler struct{}

func (okHandler) Handle(context.Context, eventsourcing.Command) error { return nil }

func newServer(t *testing.T, opts ...cloudevents.ProcessorOption) *httptest.Server {
	t.Helper()
	registry := eventsourcing.NewRegistry(eventsourcing.NewCodec())
	if err := registry.Register(okHandler{}, &shipOrder{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	processor := cloudevents.NewProcessor(registry, eventsourcing.NewBus(registry), opts...)
	srv := httptest.NewServer(httpapi.NewServer("", processor).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postEvent(t *testing.T, srv *httptest.Server, body string) (int, cloudevents.Result) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/cloudevents", cloudevents.ContentType, strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var result cloudevents.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, result
}

func TestPostCloudEventAccepted(t *testing.T) {
	srv := newServer(t)

	status, result := postEvent(t, srv, `{
		"specversion": "1.0",
		"id": "evt-1",
		"source": "shop",
		"type": "com.example.command",
		"dataschema": "urn:schema:jade:command:order:ship:1",
		"data": {"orderId": "ord-1"}
	}`)
	if status != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", status)
	}
	if result.Status != cloudevents.StatusAccepted || result.ID != "evt-1" {
		t.Errorf("result = %+v", result)
	}
}

func TestPostCloudEventErrors(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"NotJSON", `{"specversion":`, http.StatusBadRequest},
		{
			"MissingSource",
			`{"specversion":"1.0","id":"evt-2","type":"t","dataschema":"urn:schema:jade:command:order:ship:1","data":{}}`,
			http.StatusBadRequest,
		},
		{
			"UnknownSchema",
			`{"specversion":"1.0","id":"evt-3","source":"s","type":"t","dataschema":"urn:schema:jade:command:order:cancel:1","data":{}}`,
			http.StatusUnprocessableEntity,
		},
		{
			"MissingData",
			`{"specversion":"1.0","id":"evt-4","source":"s","type":"t","dataschema":"urn:schema:jade:command:order:ship:1"}`,
			http.StatusUnprocessableEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, result := postEvent(t, srv, tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if result.Status != cloudevents.StatusRejected {
				t.Errorf("result status = %s, want rejected", result.Status)
			}
		})
	}
}

func TestSchemasEndpoint(t *testing.T) {
	t.Run("DirectMode", func(t *testing.T) {
		srv := newServer(t)
		resp, err := http.Get(srv.URL + "/api/cloudevents/schemas")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}

		var body struct {
			Schemas []string `json:"schemas"`
			Count   int      `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Count != 1 || len(body.Schemas) != 1 || body.Schemas[0] != "urn:schema:jade:command:order:ship:1" {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("QueuedModeHidesSchemas", func(t *testing.T) {
		srv := newServer(t, cloudevents.WithPublisher(publisherFunc(func(context.Context, *cloudevents.CloudEvent) error {
			return nil
		})))
		resp, err := http.Get(srv.URL + "/api/cloudevents/schemas")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestHealthz(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

type publisherFunc func(ctx context.Context, ce *cloudevents.CloudEvent) error

func (f publisherFunc) Publish(ctx context.Context, ce *cloudevents.CloudEvent) error {
	return f(ctx, ce)
}
