package models

import "time"

// District is one row of the static gazetteer.
type District struct {
	Name         string `yaml:"name" json:"name"`
	Municipality string `yaml:"municipality" json:"municipality"`
	Department   string `yaml:"department" json:"department"`
}

type Right struct {
	ID           string `json:"id_right"`
	Label        string `json:"right"`
	DisplayOrder int    `json:"order"`
	Visible      bool   `json:"visible"`
}

// NewsItem is keyed by (Headline, Date). Date is YYYY-MM-DD.
type NewsItem struct {
	ID       string
	Headline string
	Content  string
	Date     string
}

// Analysis holds the serialized snapshot of every AnalysisDetail of a news item.
type Analysis struct {
	ID        string
	NewsID    string
	Content   string
	CreatedAt time.Time
}

// AnalysisRecord is an Analysis as listed over the API, with its content decoded.
type AnalysisRecord struct {
	ID        string                 `json:"id_analysis"`
	NewsID    string                 `json:"id_news"`
	Results   []ClassificationResult `json:"content"`
	CreatedAt time.Time              `json:"analysis_date"`
}

// AnalysisRight links an analysis to one right it covers.
type AnalysisRight struct {
	AnalysisID string   `json:"id_analysis"`
	RightID    string   `json:"id_right"`
	Right      string   `json:"right"`
	Count      int      `json:"cantidad"`
	Places     []string `json:"lugares"`
}

type AnalysisDetail struct {
	ID         string
	AnalysisID string
	RightID    string
	Count      int
	Places     []string
}

// ClassificationResult is the record exchanged with the model and stored in
// Analysis.Content. Places is never nil once normalized.
type ClassificationResult struct {
	Right  string   `json:"derecho"`
	Count  int      `json:"cantidad"`
	Places []string `json:"lugares"`
}

// Normalized returns a copy whose Places is non-nil.
func (r ClassificationResult) Normalized() ClassificationResult {
	if r.Places == nil {
		r.Places = []string{}
	}
	return r
}

// Article is one item of a batch-extraction output.
type Article struct {
	Headline string `json:"titular"`
	Content  string `json:"contenido"`
	Date     string `json:"fecha"`
}

// NewsDetail is a news item with its analysis filtered to a set of rights.
type NewsDetail struct {
	ID       string                 `json:"id_news"`
	Headline string                 `json:"headline"`
	Content  string                 `json:"content"`
	Date     string                 `json:"news_date"`
	Analysis []ClassificationResult `json:"filtered_analysis"`
}
