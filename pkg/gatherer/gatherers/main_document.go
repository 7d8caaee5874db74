package gatherers

import (
	"context"
	"encoding/json"

	"github.com/odvcencio/pharos/pkg/driver"
	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/gatherer"
)

// MainDocumentContentSymbol identifies the document content collector.
var MainDocumentContentSymbol = gatherer.NewSymbol(MainDocumentContentID)

// MainDocumentContent captures the serialized HTML of the main frame after
// the page settles. Several DOM-derived collectors depend on it rather than
// re-serializing the document themselves.
type MainDocumentContent struct {
	gatherer.Base
}

func (g *MainDocumentContent) Meta() gatherer.Meta {
	return gatherer.Meta{
		Symbol:         MainDocumentContentSymbol,
		SupportedModes: []gather.Mode{gather.ModeSnapshot, gather.ModeNavigation},
	}
}

func (g *MainDocumentContent) GetArtifact(ctx context.Context, gctx *gatherer.Context) (any, error) {
	raw, err := gctx.Driver.Evaluate(ctx, "document.documentElement.outerHTML", driver.EvalOptions{})
	if err != nil {
		return nil, err
	}
	var html string
	if err := json.Unmarshal(raw, &html); err != nil {
		return nil, err
	}
	return html, nil
}
