// Package cli formats shelfrank results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hyperjump/shelfrank/internal/ingest"
	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/hyperjump/shelfrank/pkg/utils"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text with the score breakdown (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one line per result.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts text, compact or json. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputText, nil
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
}

// WriteSearchResults writes a search response to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, r := range response.Results {
			p := r.Product
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\t%s\n", r.Rank, r.FinalScore, p.ProductID, formatPrice(p.Price), p.Title)
		}
		return nil
	default:
		writeSearchText(w, response)
		return nil
	}
}

func writeSearchText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\n%d of %d matching products (%d candidates) in %dms\n",
		len(response.Results), response.Total, response.Candidates, response.QueryTime)
	if desc := DescribeIntent(response.Intent); desc != "" {
		fmt.Fprintf(w, "Understood: %s\n", desc)
	}
	fmt.Fprintln(w)
	for _, r := range response.Results {
		p := r.Product
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "#%d  %s  [%s]\n", r.Rank, p.Title, p.ProductID)
		fmt.Fprintf(w, "    %s", formatPrice(p.Price))
		for _, attr := range []string{p.Brand, p.Color, sizeLabel(p.Size), ratingLabel(p.Rating)} {
			if attr != "" {
				fmt.Fprintf(w, " · %s", attr)
			}
		}
		fmt.Fprintln(w)
		if p.Description != "" {
			fmt.Fprintf(w, "    %s\n", utils.Truncate(p.Description, 120))
		}
		fmt.Fprintf(w, "    score %.4f = semantic %.4f | click %.4f | cart %.4f | buy %.4f | bounce %.4f\n",
			r.FinalScore, r.SemanticScore, r.NormClick, r.NormCart, r.NormBuy, r.NormBounce)
	}
	if len(response.Results) > 0 {
		fmt.Fprintln(w)
	}
}

// DescribeIntent renders the extracted constraints as a short phrase, or "" when none.
func DescribeIntent(in *models.QueryIntent) string {
	if in.IsEmpty() {
		return ""
	}
	var parts []string
	if in.Color != nil {
		parts = append(parts, "color "+*in.Color)
	}
	if in.Brand != nil {
		parts = append(parts, "brand "+*in.Brand)
	}
	if in.Size != nil {
		parts = append(parts, "size "+*in.Size)
	}
	switch {
	case in.MinPrice != nil && in.MaxPrice != nil:
		parts = append(parts, "price "+formatPrice(*in.MinPrice)+"-"+formatPrice(*in.MaxPrice))
	case in.MaxPrice != nil:
		parts = append(parts, "price <= "+formatPrice(*in.MaxPrice))
	case in.MinPrice != nil:
		parts = append(parts, "price >= "+formatPrice(*in.MinPrice))
	}
	if in.MinRating != nil {
		parts = append(parts, "rating >= "+strconv.FormatFloat(*in.MinRating, 'f', -1, 64))
	}
	return strings.Join(parts, ", ")
}

// WriteIngestResult reports an ingestion run.
func WriteIngestResult(w io.Writer, source string, res *ingest.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "%s: %d rows read, %d ingested, %d skipped\n", source, res.Read, res.Ingested, res.Skipped)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func sizeLabel(s string) string {
	if s == "" {
		return ""
	}
	return "size " + s
}

func ratingLabel(r float64) string {
	if r == 0 {
		return ""
	}
	return strconv.FormatFloat(r, 'f', 1, 64) + "★"
}
