// Package gatherers contains the built-in collectors: each produces one
// artifact through the lifecycle hook contract.
package gatherers

import "github.com/odvcencio/pharos/pkg/gatherer"

// Artifact ids double as registry ids.
const (
	ConsoleMessagesID     = "ConsoleMessages"
	NetworkRecordsID      = "NetworkRecords"
	MainDocumentContentID = "MainDocumentContent"
	ScriptElementsID      = "ScriptElements"
	ImageElementsID       = "ImageElements"
	MetaElementsID        = "MetaElements"
	FontSizeID            = "FontSize"
	FullPageScreenshotID  = "FullPageScreenshot"
	StacksID              = "Stacks"
)

// DefaultRegistry returns a registry holding every built-in collector.
func DefaultRegistry() *gatherer.Registry {
	r := gatherer.NewRegistry()
	r.MustRegister(ConsoleMessagesID, func() gatherer.Gatherer { return &ConsoleMessages{} })
	r.MustRegister(NetworkRecordsID, func() gatherer.Gatherer { return &NetworkRecords{} })
	r.MustRegister(MainDocumentContentID, func() gatherer.Gatherer { return &MainDocumentContent{} })
	r.MustRegister(ScriptElementsID, func() gatherer.Gatherer { return &ScriptElements{} })
	r.MustRegister(ImageElementsID, func() gatherer.Gatherer { return &ImageElements{} })
	r.MustRegister(MetaElementsID, func() gatherer.Gatherer { return &MetaElements{} })
	r.MustRegister(FontSizeID, func() gatherer.Gatherer { return &FontSize{} })
	r.MustRegister(FullPageScreenshotID, func() gatherer.Gatherer { return &FullPageScreenshot{} })
	r.MustRegister(StacksID, func() gatherer.Gatherer { return &Stacks{} })
	return r
}
