package gatherers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/gatherer"
	"github.com/odvcencio/pharos/pkg/protocol"
)

// NetworkRecordsSymbol identifies the network record collector to dependents.
var NetworkRecordsSymbol = gatherer.NewSymbol(NetworkRecordsID)

// NetworkRecord is one request observed during the instrumentation window.
type NetworkRecord struct {
	RequestID    string  `json:"requestId"`
	URL          string  `json:"url"`
	ResourceType string  `json:"resourceType"`
	StatusCode   int     `json:"statusCode,omitempty"`
	MimeType     string  `json:"mimeType,omitempty"`
	Finished     bool    `json:"finished"`
	Failed       bool    `json:"failed"`
	ErrorText    string  `json:"errorText,omitempty"`
	EncodedBytes float64 `json:"encodedBytes,omitempty"`
}

// NetworkRecords assembles the request log for the gather window.
type NetworkRecords struct {
	gatherer.Base

	mu       sync.Mutex
	records  map[string]*NetworkRecord
	order    []string
	removers []func()
}

func (g *NetworkRecords) Meta() gatherer.Meta {
	return gatherer.Meta{
		Symbol:         NetworkRecordsSymbol,
		SupportedModes: []gather.Mode{gather.ModeTimespan, gather.ModeNavigation},
	}
}

func (g *NetworkRecords) StartInstrumentation(ctx context.Context, gctx *gatherer.Context) error {
	g.records = make(map[string]*NetworkRecord)
	session := gctx.Driver.Session()

	g.removers = append(g.removers, session.On("Network.requestWillBeSent", func(ev protocol.Event) {
		var payload struct {
			RequestID string `json:"requestId"`
			Type      string `json:"type"`
			Request   struct {
				URL string `json:"url"`
			} `json:"request"`
		}
		if err := json.Unmarshal(ev.Params, &payload); err != nil {
			return
		}
		g.mu.Lock()
		if _, seen := g.records[payload.RequestID]; !seen {
			g.order = append(g.order, payload.RequestID)
		}
		g.records[payload.RequestID] = &NetworkRecord{
			RequestID:    payload.RequestID,
			URL:          payload.Request.URL,
			ResourceType: payload.Type,
		}
		g.mu.Unlock()
	}))
	g.removers = append(g.removers, session.On("Network.responseReceived", func(ev protocol.Event) {
		var payload struct {
			RequestID string `json:"requestId"`
			Response  struct {
				Status   int    `json:"status"`
				MimeType string `json:"mimeType"`
			} `json:"response"`
		}
		if err := json.Unmarshal(ev.Params, &payload); err != nil {
			return
		}
		g.mu.Lock()
		if record := g.records[payload.RequestID]; record != nil {
			record.StatusCode = payload.Response.Status
			record.MimeType = payload.Response.MimeType
		}
		g.mu.Unlock()
	}))
	g.removers = append(g.removers, session.On("Network.loadingFinished", func(ev protocol.Event) {
		var payload struct {
			RequestID         string  `json:"requestId"`
			EncodedDataLength float64 `json:"encodedDataLength"`
		}
		if err := json.Unmarshal(ev.Params, &payload); err != nil {
			return
		}
		g.mu.Lock()
		if record := g.records[payload.RequestID]; record != nil {
			record.Finished = true
			record.EncodedBytes = payload.EncodedDataLength
		}
		g.mu.Unlock()
	}))
	g.removers = append(g.removers, session.On("Network.loadingFailed", func(ev protocol.Event) {
		var payload struct {
			RequestID string `json:"requestId"`
			ErrorText string `json:"errorText"`
		}
		if err := json.Unmarshal(ev.Params, &payload); err != nil {
			return
		}
		g.mu.Lock()
		if record := g.records[payload.RequestID]; record != nil {
			record.Finished = true
			record.Failed = true
			record.ErrorText = payload.ErrorText
		}
		g.mu.Unlock()
	}))
	return nil
}

func (g *NetworkRecords) StopInstrumentation(ctx context.Context, gctx *gatherer.Context) error {
	for _, remove := range g.removers {
		remove()
	}
	g.removers = nil
	return nil
}

func (g *NetworkRecords) GetArtifact(ctx context.Context, gctx *gatherer.Context) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]NetworkRecord, 0, len(g.order))
	for _, id := range g.order {
		if record := g.records[id]; record != nil {
			out = append(out, *record)
		}
	}
	return out, nil
}
