package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/use-agent/catalog/config"
	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/payload"
	"github.com/use-agent/catalog/pipeline"
	"github.com/use-agent/catalog/resolver"
	"github.com/use-agent/catalog/sink"
	"github.com/use-agent/catalog/tracker"
)

type extractFlags struct {
	embedded   string
	api        string
	markup     string
	html       string
	locale     string
	baseURL    string
	categoryID string
	target     int
	asJSON     bool
	save       bool
}

var xf extractFlags

func init() {
	f := extractCmd.Flags()
	f.StringVar(&xf.embedded, "embedded", "", "File holding the embedded page state JSON.")
	f.StringVar(&xf.api, "api", "", "File holding the internal API response JSON.")
	f.StringVar(&xf.markup, "markup", "", "File holding structured markup JSON.")
	f.StringVar(&xf.html, "html", "", "Saved listing page; its ItemList markup and inline state are used when the JSON files are absent.")
	f.StringVar(&xf.locale, "locale", "", "Site locale path, e.g. uk/en.")
	f.StringVar(&xf.baseURL, "base-url", "", "Site origin, e.g. https://www.example.com.")
	f.StringVar(&xf.categoryID, "category-id", "", "Category id of the listing.")
	f.IntVar(&xf.target, "target", 100, "Maximum number of records to return.")
	f.BoolVar(&xf.asJSON, "json", false, "Print records as JSON instead of a table.")
	f.BoolVar(&xf.save, "save", false, "Write accepted records to the configured sink.")
	_ = extractCmd.MarkFlagRequired("base-url")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract --base-url <url> [--embedded f] [--api f] [--markup f] [--html f]",
	Short: "Extracts products from saved page sources without a browser.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.Load()

		prov, err := loadSources(xf, cfg.Scraper.StateGlobals)
		if err != nil {
			return err
		}

		sinkCfg := sink.Config{Kinds: []sink.Kind{sink.KindNone}}
		if xf.save {
			sinkCfg = cfg.Sink.Options()
		}
		p, out, err := newPipeline(ctx, cfg, sinkCfg, nil)
		if err != nil {
			return err
		}
		defer out.Close()

		ec := models.ExtractionContext{
			Locale:      xf.locale,
			BaseURL:     xf.baseURL,
			CategoryID:  xf.categoryID,
			TargetCount: xf.target,
		}
		var r *pipeline.Result
		if xf.save {
			r, err = p.Process(ctx, prov, ec, tracker.New(xf.target))
		} else {
			r, err = p.Extract(ctx, prov, ec)
		}
		if err != nil {
			return err
		}
		return printProducts(r)
	},
}

// loadSources decodes the source files named by f. A saved HTML page fills
// in the embedded state and structured markup when their files are absent.
func loadSources(f extractFlags, globals []string) (*resolver.StaticProvider, error) {
	raw := make(map[models.SourceKind][]byte)
	for kind, path := range map[models.SourceKind]string{
		models.SourceEmbeddedState:    f.embedded,
		models.SourceInternalAPI:      f.api,
		models.SourceStructuredMarkup: f.markup,
	} {
		if path == "" {
			continue
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s source: %w", kind, err)
		}
		raw[kind] = b
	}

	prov, err := resolver.DecodeStaticProvider(raw)
	if err != nil {
		return nil, err
	}

	if f.html != "" {
		b, err := os.ReadFile(f.html)
		if err != nil {
			return nil, fmt.Errorf("read html: %w", err)
		}
		page := string(b)
		if !prov.Has(models.SourceEmbeddedState) {
			prov.Set(models.SourceEmbeddedState, payload.InlineState(page, globals))
		}
		if !prov.Has(models.SourceStructuredMarkup) {
			prov.Set(models.SourceStructuredMarkup, payload.ItemList(page))
		}
	}
	return prov, nil
}

func printProducts(r *pipeline.Result) error {
	if xf.asJSON {
		products := r.Accepted
		if products == nil {
			products = []models.NormalizedProduct{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(models.ExtractResponse{
			Success:  true,
			Outcome:  r.Outcome,
			Products: products,
			Sources:  r.Sources,
		})
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Name", "Price", "Currency", "Availability", "URL"})
	for _, p := range r.Accepted {
		price := ""
		if p.Price != nil {
			price = fmt.Sprintf("%.2f", *p.Price)
		}
		t.AppendRow(table.Row{p.ProductID, p.Name, price, p.Currency, deref(p.Availability), deref(p.ProductURL)})
	}
	t.AppendFooter(table.Row{"", string(r.Outcome), "", "", "", fmt.Sprintf("%d records", len(r.Accepted))})
	t.SetStyle(table.StyleRounded)
	t.Render()

	for _, s := range r.Sources {
		if s.Attempted {
			fmt.Fprintf(os.Stderr, "source %-18s available=%-5t located=%d normalized=%d\n", s.Kind, s.Available, s.Located, s.Normalized)
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
