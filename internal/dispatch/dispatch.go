// Package dispatch routes inbound events to the recommendation, search, ingestion and scrape
// operations and answers each with a status code and a structured body.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Event kinds, in classification order.
const (
	KindQuery        = "query"
	KindHTTP         = "http"
	KindRecords      = "records"
	KindScheduled    = "scheduled"
	KindTask         = "task"
	KindQueryResults = "query_results"
	KindManual       = "manual"
)

// scheduledSources are the event sources that trigger a scheduled scrape.
var scheduledSources = map[string]bool{
	"aws.events": true,
	"scheduler":  true,
}

// CORSHeaders are attached to every proxied HTTP response.
var CORSHeaders = map[string]string{
	"Content-Type":                 "application/json",
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type, Authorization",
}

// Dispatcher classifies loosely typed events and hands them to a Service.
type Dispatcher struct {
	svc *Service
	log *zap.Logger
}

// New creates a Dispatcher over svc.
func New(svc *Service) *Dispatcher {
	return &Dispatcher{svc: svc, log: svc.log}
}

// Service returns the operations behind the dispatcher.
func (d *Dispatcher) Service() *Service { return d.svc }

// Classify returns the kind of event.
func Classify(event map[string]any) string {
	if q, ok := event["query"]; ok {
		if _, isObject := q.(map[string]any); isObject {
			return KindQuery
		}
	}
	if _, ok := event["httpMethod"]; ok {
		return KindHTTP
	}
	if records, ok := event["Records"].([]any); ok && len(records) > 0 {
		return KindRecords
	}
	if source, ok := event["source"].(string); ok && scheduledSources[source] {
		return KindScheduled
	}
	if _, ok := event["task"]; ok {
		return KindTask
	}
	for _, key := range []string{"success", "total_hits", "results"} {
		if _, ok := event[key]; ok {
			return KindQueryResults
		}
	}
	return KindManual
}

// Handle routes one event. It never returns an error; failures are reported in the Response.
func (d *Dispatcher) Handle(ctx context.Context, event map[string]any) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("event handler panicked", zap.Any("panic", r))
			resp = respond(http.StatusInternalServerError, ErrorBody{Error: fmt.Sprint(r)})
		}
	}()

	kind := Classify(event)
	d.log.Info("received event", zap.String("kind", kind), zap.Strings("keys", keys(event)))

	switch kind {
	case KindQuery:
		var req SearchRequest
		if err := decode(event, &req); err != nil {
			return d.svc.failure("search", err)
		}
		return d.svc.Search(ctx, req)

	case KindHTTP:
		return d.handleHTTP(ctx, event)

	case KindRecords:
		var payload struct {
			Records []Record `mapstructure:"Records"`
		}
		if err := decode(event, &payload); err != nil {
			return d.svc.failure("records", err)
		}
		return d.svc.ProcessRecords(ctx, payload.Records)

	case KindScheduled:
		return d.svc.ScheduledScrape(ctx)

	case KindTask:
		task, _ := event["task"].(string)
		return d.svc.ManualTask(ctx, task, event)

	case KindQueryResults:
		d.log.Warn("event looks like query results, echoing it back")
		return respond(http.StatusOK, map[string]any{
			"message":    "Received what appears to be query results",
			"event_type": KindQueryResults,
			"event_data": event,
		})

	default:
		d.log.Warn("unrecognized event format, running default task")
		return d.svc.ManualTask(ctx, "", event)
	}
}

// handleHTTP routes a proxied HTTP request by method and path.
func (d *Dispatcher) handleHTTP(ctx context.Context, event map[string]any) Response {
	method, _ := event["httpMethod"].(string)
	path, _ := event["path"].(string)
	method = strings.ToUpper(method)
	d.log.Info("proxied request", zap.String("method", method), zap.String("path", path))

	body, err := requestBody(event["body"])
	if err != nil {
		return withCORS(respond(http.StatusBadRequest, ErrorBody{Error: "Invalid JSON in request body"}))
	}

	var resp Response
	switch {
	case method == http.MethodOptions:
		resp = respond(http.StatusOK, map[string]any{})
	case method == http.MethodPost && path == "/recommendations":
		var req RecommendRequest
		if err := decode(body, &req); err != nil {
			return withCORS(d.svc.failure("recommend", err))
		}
		resp = d.svc.Recommend(ctx, req)
	case method == http.MethodPost && path == "/search":
		var req SearchRequest
		if err := decode(body, &req); err != nil {
			return withCORS(d.svc.failure("search", err))
		}
		resp = d.svc.Search(ctx, req)
	case method == http.MethodPost && path == "/aggregations":
		var req AggregationRequest
		if err := decode(body, &req); err != nil {
			return withCORS(d.svc.failure("aggregate", err))
		}
		resp = d.svc.Aggregate(ctx, req)
	case method == http.MethodGet && path == "/status":
		resp = d.svc.Status(ctx)
	case method == http.MethodPost && path == "/test":
		var req TestRequest
		if err := decode(body, &req); err != nil {
			return withCORS(d.svc.failure("test", err))
		}
		resp = d.svc.Test(ctx, req)
	case method == http.MethodPost && path == "/cvs":
		var req IngestRequest
		if err := decode(body, &req); err != nil {
			return withCORS(d.svc.failure("ingest", err))
		}
		resp = d.svc.Ingest(ctx, req)
	default:
		resp = respond(http.StatusNotFound, ErrorBody{Error: fmt.Sprintf("Endpoint not found: %s %s", method, path)})
	}
	return withCORS(resp)
}

// requestBody accepts a JSON string, an already decoded object or nothing.
func requestBody(raw any) (map[string]any, error) {
	switch b := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return b, nil
	case string:
		if strings.TrimSpace(b) == "" {
			return map[string]any{}, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(b), &out); err != nil {
			return nil, err
		}
		if out == nil {
			out = map[string]any{}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported body type %T", raw)
	}
}

func withCORS(r Response) Response {
	r.Headers = maps.Clone(CORSHeaders)
	return r
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
