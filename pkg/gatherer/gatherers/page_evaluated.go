package gatherers

import (
	"context"
	"encoding/json"

	"github.com/odvcencio/pharos/pkg/driver"
	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/gatherer"
)

var (
	// MetaElementsSymbol identifies the meta tag collector.
	MetaElementsSymbol = gatherer.NewSymbol(MetaElementsID)
	// FontSizeSymbol identifies the font-size collector.
	FontSizeSymbol = gatherer.NewSymbol(FontSizeID)
	// StacksSymbol identifies the JS library detection collector.
	StacksSymbol = gatherer.NewSymbol(StacksID)
)

// MetaElement is one meta tag read from the live page.
type MetaElement struct {
	Name     string `json:"name,omitempty"`
	Property string `json:"property,omitempty"`
	Content  string `json:"content,omitempty"`
}

// MetaElements reads the page's meta tags in an isolated world so page
// scripts cannot shadow the DOM accessors it relies on.
type MetaElements struct {
	gatherer.Base
}

func (g *MetaElements) Meta() gatherer.Meta {
	return gatherer.Meta{
		Symbol:         MetaElementsSymbol,
		SupportedModes: []gather.Mode{gather.ModeSnapshot, gather.ModeNavigation},
	}
}

const metaElementsExpression = `JSON.stringify([...document.querySelectorAll('head meta')].map(m => ({
  name: m.getAttribute('name') || undefined,
  property: m.getAttribute('property') || undefined,
  content: m.getAttribute('content') || undefined,
})))`

func (g *MetaElements) GetArtifact(ctx context.Context, gctx *gatherer.Context) (any, error) {
	return evaluateJSON[[]MetaElement](ctx, gctx, metaElementsExpression, driver.EvalOptions{Isolated: true})
}

// FontSizeSample records the computed font size of one text node bucket.
type FontSizeSample struct {
	Selector   string  `json:"selector"`
	FontSizePx float64 `json:"fontSizePx"`
	TextLength int     `json:"textLength"`
}

// FontSize samples computed font sizes of visible text.
type FontSize struct {
	gatherer.Base
}

func (g *FontSize) Meta() gatherer.Meta {
	return gatherer.Meta{
		Symbol:         FontSizeSymbol,
		SupportedModes: []gather.Mode{gather.ModeSnapshot, gather.ModeNavigation},
	}
}

const fontSizeExpression = `JSON.stringify([...document.querySelectorAll('body *')].slice(0, 500)
  .filter(el => el.innerText && el.children.length === 0)
  .map(el => ({
    selector: el.tagName.toLowerCase(),
    fontSizePx: parseFloat(getComputedStyle(el).fontSize),
    textLength: el.innerText.length,
  })))`

func (g *FontSize) GetArtifact(ctx context.Context, gctx *gatherer.Context) (any, error) {
	return evaluateJSON[[]FontSizeSample](ctx, gctx, fontSizeExpression, driver.EvalOptions{Isolated: true})
}

// DetectedStack is one JS library detected on the page.
type DetectedStack struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Stacks detects well-known JS libraries from their global markers.
type Stacks struct {
	gatherer.Base
}

func (g *Stacks) Meta() gatherer.Meta {
	return gatherer.Meta{
		Symbol:         StacksSymbol,
		SupportedModes: []gather.Mode{gather.ModeSnapshot, gather.ModeTimespan, gather.ModeNavigation},
	}
}

const stacksExpression = `JSON.stringify([
  window.jQuery && {id: 'jquery', name: 'jQuery', version: window.jQuery.fn && window.jQuery.fn.jquery},
  window.React && {id: 'react', name: 'React', version: window.React.version},
  window.Vue && {id: 'vue', name: 'Vue', version: window.Vue.version},
  window.angular && {id: 'angularjs', name: 'AngularJS', version: window.angular.version && window.angular.version.full},
].filter(Boolean))`

func (g *Stacks) GetArtifact(ctx context.Context, gctx *gatherer.Context) (any, error) {
	return evaluateJSON[[]DetectedStack](ctx, gctx, stacksExpression, driver.EvalOptions{})
}

// evaluateJSON runs an expression that returns a JSON string and decodes it.
func evaluateJSON[T any](ctx context.Context, gctx *gatherer.Context, expression string, opts driver.EvalOptions) (T, error) {
	var out T
	raw, err := gctx.Driver.Evaluate(ctx, expression, opts)
	if err != nil {
		return out, err
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(encoded), &out); err != nil {
		return out, err
	}
	return out, nil
}
