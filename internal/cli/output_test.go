package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/shelfrank/internal/ingest"
	"github.com/hyperjump/shelfrank/internal/models"
)

func sampleResponse() *models.SearchResponse {
	maxPrice, rating, color := 3000.0, 4.0, "red"
	return &models.SearchResponse{
		Query:      "red shoes under 3000 with 4 star rating",
		QueryTime:  12,
		Total:      3,
		Candidates: 7,
		Intent:     &models.QueryIntent{Color: &color, MaxPrice: &maxPrice, MinRating: &rating},
		Results: []*models.SearchResult{
			{
				Rank:          1,
				SemanticScore: 0.8123,
				NormBuy:       1,
				FinalScore:    0.6468,
				Product: &models.Product{
					ProductID:   "P1",
					Title:       "Red Runner",
					Description: "Light running shoe",
					Brand:       "Nike",
					Color:       "red",
					Size:        "9",
					Price:       2500,
					Rating:      4.5,
				},
			},
			{
				Rank:          2,
				SemanticScore: 0.7,
				FinalScore:    0.385,
				Product:       &models.Product{ProductID: "P9", Title: "Red Flat", Price: 999.5},
			},
		},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Total != 3 || len(decoded.Results) != 2 || decoded.Results[0].Product.ProductID != "P1" {
		t.Errorf("unexpected decoded response %+v", decoded)
	}
	if !strings.Contains(buf.String(), `"normalized_purchase_score": 1`) {
		t.Errorf("score breakdown missing from JSON:\n%s", buf.String())
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"2 of 3 matching products (7 candidates) in 12ms",
		"Understood: color red, price <= 3000, rating >= 4",
		"#1  Red Runner  [P1]",
		"2500 · Nike · red · size 9 · 4.5★",
		"score 0.6468 = semantic 0.8123",
		"#2  Red Flat  [P9]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResults_Compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", lines)
	}
	if lines[1] != "2\t0.3850\tP9\t999.5\tRed Flat" {
		t.Errorf("unexpected compact line %q", lines[1])
	}
}

func TestWriteSearchResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	resp := &models.SearchResponse{Results: []*models.SearchResult{}}
	if err := WriteSearchResults(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "0 of 0 matching products") || strings.Contains(buf.String(), "Understood") {
		t.Errorf("unexpected empty output %q", buf.String())
	}
}

func TestDescribeIntent(t *testing.T) {
	lo, hi, brand, size := 2000.0, 6000.0, "nike", "xl"
	tests := []struct {
		in   *models.QueryIntent
		want string
	}{
		{nil, ""},
		{&models.QueryIntent{}, ""},
		{&models.QueryIntent{MinPrice: &lo, MaxPrice: &hi}, "price 2000-6000"},
		{&models.QueryIntent{MinPrice: &lo, Brand: &brand, Size: &size}, "brand nike, size xl, price >= 2000"},
	}
	for _, tt := range tests {
		if got := DescribeIntent(tt.in); got != tt.want {
			t.Errorf("DescribeIntent(%+v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "JSON": OutputJSON, "compact": OutputCompact} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error for yaml")
	}
}

func TestWriteIngestResult(t *testing.T) {
	var buf bytes.Buffer
	res := &ingest.Result{Read: 5, Ingested: 3, Skipped: 2}
	if err := WriteIngestResult(&buf, "catalog.csv", res, OutputText); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "catalog.csv: 5 rows read, 3 ingested, 2 skipped\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}
