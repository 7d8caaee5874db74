package gatherers

import (
	"context"
	"time"

	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/gatherer"
)

// FullPageScreenshotSymbol identifies the screenshot collector.
var FullPageScreenshotSymbol = gatherer.NewSymbol(FullPageScreenshotID)

// Screenshot is a captured page image.
type Screenshot struct {
	Format string `json:"format"`
	Data   string `json:"data"` // base64
}

// FullPageScreenshot captures the page image used by report-side element
// highlighting. It runs in every gather mode.
type FullPageScreenshot struct {
	gatherer.Base
}

func (g *FullPageScreenshot) Meta() gatherer.Meta {
	return gatherer.Meta{
		Symbol:         FullPageScreenshotSymbol,
		SupportedModes: []gather.Mode{gather.ModeSnapshot, gather.ModeTimespan, gather.ModeNavigation},
	}
}

func (g *FullPageScreenshot) GetArtifact(ctx context.Context, gctx *gatherer.Context) (any, error) {
	session := gctx.Driver.Session()
	// Large pages can take well past the default command timeout to encode.
	session.SetNextTimeout(60 * time.Second)

	var result struct {
		Data string `json:"data"`
	}
	err := session.SendAndDecode(ctx, "Page.captureScreenshot", map[string]any{
		"format":                "webp",
		"quality":               30,
		"captureBeyondViewport": true,
	}, &result)
	if err != nil {
		return nil, err
	}
	return Screenshot{Format: "webp", Data: result.Data}, nil
}
