package gatherers

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/gatherer"
)

var (
	// ScriptElementsSymbol identifies the script element collector.
	ScriptElementsSymbol = gatherer.NewSymbol(ScriptElementsID)
	// ImageElementsSymbol identifies the image element collector.
	ImageElementsSymbol = gatherer.NewSymbol(ImageElementsID)
)

// documentDependency is the dependency name both DOM collectors use for the
// captured page HTML.
const documentDependency = "MainDocumentContent"

// documentFromDependency parses the captured main-document HTML provided by
// the MainDocumentContent collector.
func documentFromDependency(gctx *gatherer.Context) (*goquery.Document, error) {
	value, err := gctx.Dependency(documentDependency)
	if err != nil {
		return nil, err
	}
	html, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("gatherers: document dependency is %T, want string", value)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("gatherers: parse document: %w", err)
	}
	return doc, nil
}

// ScriptElement describes one script tag on the page.
type ScriptElement struct {
	Src    string `json:"src,omitempty"`
	Type   string `json:"type,omitempty"`
	Async  bool   `json:"async"`
	Defer  bool   `json:"defer"`
	Inline bool   `json:"inline"`
}

// ScriptElements extracts the page's script tags from the captured document.
type ScriptElements struct {
	gatherer.Base
}

func (g *ScriptElements) Meta() gatherer.Meta {
	return gatherer.Meta{
		Symbol:         ScriptElementsSymbol,
		SupportedModes: []gather.Mode{gather.ModeSnapshot, gather.ModeNavigation},
		Dependencies: map[string]*gatherer.Symbol{
			documentDependency: MainDocumentContentSymbol,
		},
	}
}

func (g *ScriptElements) GetArtifact(ctx context.Context, gctx *gatherer.Context) (any, error) {
	doc, err := documentFromDependency(gctx)
	if err != nil {
		return nil, err
	}
	var scripts []ScriptElement
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		typ, _ := sel.Attr("type")
		_, async := sel.Attr("async")
		_, deferred := sel.Attr("defer")
		scripts = append(scripts, ScriptElement{
			Src:    src,
			Type:   typ,
			Async:  async,
			Defer:  deferred,
			Inline: src == "",
		})
	})
	return scripts, nil
}

// ImageElement describes one image on the page.
type ImageElement struct {
	Src     string `json:"src,omitempty"`
	Alt     string `json:"alt"`
	HasAlt  bool   `json:"hasAlt"`
	Loading string `json:"loading,omitempty"`
	Srcset  string `json:"srcset,omitempty"`
}

// ImageElements extracts the page's images from the captured document.
type ImageElements struct {
	gatherer.Base
}

func (g *ImageElements) Meta() gatherer.Meta {
	return gatherer.Meta{
		Symbol:         ImageElementsSymbol,
		SupportedModes: []gather.Mode{gather.ModeSnapshot, gather.ModeNavigation},
		Dependencies: map[string]*gatherer.Symbol{
			documentDependency: MainDocumentContentSymbol,
		},
	}
}

func (g *ImageElements) GetArtifact(ctx context.Context, gctx *gatherer.Context) (any, error) {
	doc, err := documentFromDependency(gctx)
	if err != nil {
		return nil, err
	}
	var images []ImageElement
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		alt, hasAlt := sel.Attr("alt")
		loading, _ := sel.Attr("loading")
		srcset, _ := sel.Attr("srcset")
		images = append(images, ImageElement{
			Src:     src,
			Alt:     alt,
			HasAlt:  hasAlt,
			Loading: loading,
			Srcset:  srcset,
		})
	})
	return images, nil
}
