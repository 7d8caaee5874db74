package gatherers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/gatherer"
	"github.com/odvcencio/pharos/pkg/protocol"
)

// ConsoleMessagesSymbol identifies the console message collector to
// dependents.
var ConsoleMessagesSymbol = gatherer.NewSymbol(ConsoleMessagesID)

// ConsoleMessage is one console API call or log entry observed on the page.
type ConsoleMessage struct {
	Source string `json:"source"`
	Level  string `json:"level"`
	Text   string `json:"text"`
	URL    string `json:"url,omitempty"`
	Line   int    `json:"line,omitempty"`
}

// ConsoleMessages records console activity between its start and stop hooks.
type ConsoleMessages struct {
	gatherer.Base

	mu       sync.Mutex
	messages []ConsoleMessage
	removers []func()
}

func (g *ConsoleMessages) Meta() gatherer.Meta {
	return gatherer.Meta{
		Symbol:         ConsoleMessagesSymbol,
		SupportedModes: []gather.Mode{gather.ModeTimespan, gather.ModeNavigation},
	}
}

func (g *ConsoleMessages) StartInstrumentation(ctx context.Context, gctx *gatherer.Context) error {
	session := gctx.Driver.Session()
	if _, err := session.Send(ctx, "Log.enable", nil); err != nil {
		return err
	}

	g.removers = append(g.removers, session.On("Runtime.consoleAPICalled", func(ev protocol.Event) {
		var payload struct {
			Type string `json:"type"`
			Args []struct {
				Value json.RawMessage `json:"value"`
			} `json:"args"`
		}
		if err := json.Unmarshal(ev.Params, &payload); err != nil {
			return
		}
		text := ""
		if len(payload.Args) > 0 {
			text = string(payload.Args[0].Value)
		}
		g.append(ConsoleMessage{Source: "console-api", Level: payload.Type, Text: text})
	}))
	g.removers = append(g.removers, session.On("Log.entryAdded", func(ev protocol.Event) {
		var payload struct {
			Entry ConsoleMessage `json:"entry"`
		}
		if err := json.Unmarshal(ev.Params, &payload); err != nil {
			return
		}
		g.append(payload.Entry)
	}))
	return nil
}

func (g *ConsoleMessages) StopInstrumentation(ctx context.Context, gctx *gatherer.Context) error {
	for _, remove := range g.removers {
		remove()
	}
	g.removers = nil
	_, err := gctx.Driver.Session().Send(ctx, "Log.disable", nil)
	return err
}

func (g *ConsoleMessages) GetArtifact(ctx context.Context, gctx *gatherer.Context) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ConsoleMessage, len(g.messages))
	copy(out, g.messages)
	return out, nil
}

func (g *ConsoleMessages) append(msg ConsoleMessage) {
	g.mu.Lock()
	g.messages = append(g.messages, msg)
	g.mu.Unlock()
}
