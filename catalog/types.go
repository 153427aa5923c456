package catalog

// Catalog is the full set of tests and packages offered by the platform,
// loaded once at startup and read-only afterwards.
type Catalog struct {
	Tests    []Test    `yaml:"tests"`
	Packages []Package `yaml:"packages"`
}

// Test is one immutable psychology test definition.
type Test struct {
	Name          string     `yaml:"test_name"`
	EstimatedTime string     `yaml:"estimated_time"`
	Outcome       string     `yaml:"outcome"`
	Usage         string     `yaml:"usage"`
	PriceTokens   int64      `yaml:"price_tokens"`
	Questions     []Question `yaml:"questions"`
	ReportMD      string     `yaml:"report_md"`
}

// Question holds the formal question text plus its ordered answer options.
// Option positions are 1-based from the user's point of view.
type Question struct {
	ID      string   `yaml:"id"`
	Text    string   `yaml:"question"`
	Options []string `yaml:"options"`
}

// Package bundles several tests sold together at a discount.
type Package struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	PriceTokens int64  `yaml:"price_tokens"`
	TestIndexes []int  `yaml:"test_indexes"`
}
