package main

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/termsheet-cli/internal/config"
	"github.com/sells-group/termsheet-cli/internal/export"
	"github.com/sells-group/termsheet-cli/internal/extract"
	"github.com/sells-group/termsheet-cli/internal/fetcher"
)

// newExtractor builds an Extractor from the built-in selector tables plus the
// configured override file.
func newExtractor(c *config.Config) (*extract.Extractor, error) {
	tables, err := extract.LoadTables(c.Selectors.OverridePath)
	if err != nil {
		return nil, eris.Wrap(err, "load selector tables")
	}
	e, err := extract.New(tables)
	if err != nil {
		return nil, eris.Wrap(err, "build extractor")
	}
	return e, nil
}

func newCollector(c *config.Config) *fetcher.Collector {
	return fetcher.NewCollector(fetcher.Options{
		Extensions: c.Ingest.Extensions,
		FTP: fetcher.FTPOptions{
			Timeout:  time.Duration(c.FTP.TimeoutSecs) * time.Second,
			User:     c.FTP.User,
			Password: c.FTP.Password,
		},
		HTTP: fetcher.HTTPOptions{
			UserAgent:         c.HTTP.UserAgent,
			Timeout:           time.Duration(c.HTTP.TimeoutSecs) * time.Second,
			MaxRetries:        c.HTTP.MaxRetries,
			RequestsPerSecond: c.HTTP.RequestsPerSecond,
		},
	})
}

func newExporter(c *config.Config) *export.Exporter {
	return export.New(export.Style{
		Font:       c.Export.Font,
		FontSize:   c.Export.FontSize,
		HeaderFill: c.Export.HeaderFill,
	})
}
