package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/payload"
)

func main() {
	apiURL := os.Getenv("CATALOG_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("CATALOG_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "CATALOG_API_KEY is required")
		os.Exit(1)
	}

	client := newClient(apiURL, apiKey)

	s := server.NewMCPServer(
		"catalog",
		"0.3.0",
		server.WithToolCapabilities(false),
	)

	extractTool := mcp.NewTool("extract_products",
		mcp.WithDescription("Extract normalized product records (id, name, price, currency, image, url, availability, colors) from retail listing page data. Pass any of the page's embedded state, internal API response, structured markup, or raw HTML."),
		mcp.WithString("base_url",
			mcp.Required(),
			mcp.Description("Site origin used to absolutize product links, e.g. https://www.example.com"),
		),
		mcp.WithString("locale",
			mcp.Required(),
			mcp.Description("Site locale path, e.g. uk/en"),
		),
		mcp.WithString("category_id",
			mcp.Description("Category id of the listing page"),
		),
		mcp.WithNumber("target_count",
			mcp.Description("Maximum number of records to return (default: 100)"),
		),
		mcp.WithString("embedded_state",
			mcp.Description("Embedded page state as JSON or a JavaScript object literal"),
		),
		mcp.WithString("api_response",
			mcp.Description("Internal listing API response body"),
		),
		mcp.WithString("structured_markup",
			mcp.Description("Structured data (ld+json ItemList) as JSON"),
		),
		mcp.WithString("html",
			mcp.Description("Rendered page HTML; its ItemList blocks are used when structured_markup is absent"),
		),
	)
	s.AddTool(extractTool, handleExtract(client))

	startRunTool := mcp.NewTool("start_run",
		mcp.WithDescription("Start a crawl over retail category listing pages. Pages are visited in a headless browser and paginated until the target count is met. Returns a run id to poll with get_run."),
		mcp.WithArray("category_urls",
			mcp.Required(),
			mcp.Description("Category listing URLs to crawl"),
		),
		mcp.WithNumber("target_count",
			mcp.Description("Stop once this many unique products are saved (default: 100, max: 10000)"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum listing pages per category (default: 5, max: 50)"),
		),
		mcp.WithBoolean("stealth",
			mcp.Description("Enable anti-bot-detection evasions"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Block until the run finishes and return its summary"),
		),
	)
	s.AddTool(startRunTool, handleStartRun(client))

	getRunTool := mcp.NewTool("get_run",
		mcp.WithDescription("Get the status and per-page summary of a crawl run."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Run id returned by start_run"),
		),
	)
	s.AddTool(getRunTool, handleGetRun(client))

	getProductsTool := mcp.NewTool("get_run_products",
		mcp.WithDescription("List the products a crawl run has saved so far."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Run id returned by start_run"),
		),
	)
	s.AddTool(getProductsTool, handleGetRunProducts(client))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// newClient returns a resty client authenticated against the catalog API.
func newClient(apiURL, apiKey string) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetHeader("X-API-Key", apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(120 * time.Second)
}

// apiError formats the error envelope of a failed call.
func apiError(resp *resty.Response, detail *models.ErrorDetail) string {
	if detail != nil {
		return fmt.Sprintf("[%s] %s", detail.Code, detail.Message)
	}
	return fmt.Sprintf("API returned HTTP %d", resp.StatusCode())
}

// strictJSON converts a JSON or JavaScript-literal argument to strict JSON.
func strictJSON(raw string) (json.RawMessage, error) {
	v, err := payload.DecodeString(raw)
	if err != nil || v == nil {
		return nil, err
	}
	return json.Marshal(v)
}

func handleExtract(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		baseURL, err := request.RequireString("base_url")
		if err != nil {
			return mcp.NewToolResultError("base_url is required"), nil
		}
		locale, err := request.RequireString("locale")
		if err != nil {
			return mcp.NewToolResultError("locale is required"), nil
		}

		req := models.ExtractRequest{
			Context: models.ExtractionContext{
				Locale:      locale,
				BaseURL:     baseURL,
				CategoryID:  request.GetString("category_id", ""),
				TargetCount: intArg(request, "target_count", 100),
			},
			HTML: request.GetString("html", ""),
		}
		for name, dst := range map[string]*json.RawMessage{
			"embedded_state":    &req.EmbeddedState,
			"api_response":      &req.APIResponse,
			"structured_markup": &req.StructuredMarkup,
		} {
			raw := request.GetString(name, "")
			if raw == "" {
				continue
			}
			if *dst, err = strictJSON(raw); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("%s is not valid JSON: %v", name, err)), nil
			}
		}

		var out models.ExtractResponse
		resp, err := client.R().SetContext(ctx).SetBody(req).SetResult(&out).SetError(&out).Post("/api/v1/extract")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		if !out.Success {
			return mcp.NewToolResultError(apiError(resp, out.Error)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Outcome: %s (%d products)\n", out.Outcome, len(out.Products))
		for _, s := range out.Sources {
			if s.Attempted {
				fmt.Fprintf(&sb, "Source %s: available=%t located=%d normalized=%d\n", s.Kind, s.Available, s.Located, s.Normalized)
			}
		}
		body, err := json.MarshalIndent(out.Products, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode products: %v", err)), nil
		}
		sb.WriteString("\n")
		sb.Write(body)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleStartRun(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("category_urls")
		if err != nil {
			return mcp.NewToolResultError("category_urls is required and must be an array of strings"), nil
		}

		req := models.RunRequest{
			CategoryURLs: urls,
			TargetCount:  intArg(request, "target_count", 0),
			MaxPages:     intArg(request, "max_pages", 0),
			Stealth:      request.GetBool("stealth", false),
		}

		var accepted models.RunResponse
		var apiErr models.ErrorResponse
		resp, err := client.R().SetContext(ctx).SetBody(req).SetResult(&accepted).SetError(&apiErr).Post("/api/v1/runs")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		if resp.IsError() || accepted.ID == "" {
			return mcp.NewToolResultError(apiError(resp, apiErr.Error)), nil
		}

		if !request.GetBool("wait", false) {
			return mcp.NewToolResultText(fmt.Sprintf("Run %s started (%s). Poll it with get_run.", accepted.ID, accepted.Status)), nil
		}

		status, err := pollRun(ctx, client, accepted.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling run failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatRun(status)), nil
	}
}

func handleGetRun(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		status, err := getRun(ctx, client, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatRun(status)), nil
	}
}

func handleGetRunProducts(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		var out models.RunProductsResponse
		var apiErr models.ErrorResponse
		resp, err := client.R().SetContext(ctx).SetResult(&out).SetError(&apiErr).Get("/api/v1/runs/" + id + "/products")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		if resp.IsError() {
			return mcp.NewToolResultError(apiError(resp, apiErr.Error)), nil
		}

		body, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode products: %v", err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func getRun(ctx context.Context, client *resty.Client, id string) (*models.RunStatusResponse, error) {
	var out models.RunStatusResponse
	var apiErr models.ErrorResponse
	resp, err := client.R().SetContext(ctx).SetResult(&out).SetError(&apiErr).Get("/api/v1/runs/" + id)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s", apiError(resp, apiErr.Error))
	}
	return &out, nil
}

// pollRun polls a run until it leaves the processing state or ctx is done.
func pollRun(ctx context.Context, client *resty.Client, id string) (*models.RunStatusResponse, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			status, err := getRun(ctx, client, id)
			if err != nil {
				return nil, err
			}
			if status.Status != models.RunProcessing {
				return status, nil
			}
		}
	}
}

func formatRun(r *models.RunStatusResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s: %s, saved %d of %d\n", r.ID, r.Status, r.SavedCount, r.TargetCount)
	for _, p := range r.Pages {
		fmt.Fprintf(&sb, "- %s page %d: ", p.CategoryID, p.Page)
		switch {
		case p.Error != nil:
			fmt.Fprintf(&sb, "error [%s] %s", p.Error.Code, p.Error.Message)
		case p.EmptyReason != models.EmptyReasonNone:
			fmt.Fprintf(&sb, "%s (%s)", p.Outcome, p.EmptyReason)
		default:
			fmt.Fprintf(&sb, "%s, %d accepted", p.Outcome, p.Accepted)
		}
		if p.Cached {
			sb.WriteString(", cached")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// intArg reads a numeric argument; JSON numbers arrive as float64.
func intArg(request mcp.CallToolRequest, name string, fallback int) int {
	if v, ok := request.GetArguments()[name].(float64); ok && v > 0 {
		return int(v)
	}
	return fallback
}
