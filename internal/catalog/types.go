package catalog

// File is the catalog as written in YAML. Dates are "2006-01-02".
type File struct {
	Version        string       `yaml:"version"`
	AlwaysEligible []int64      `yaml:"always_eligible"`
	Items          []ItemSpec   `yaml:"items"`
	Banners        []BannerSpec `yaml:"banners"`
	Notes          string       `yaml:"notes,omitempty"`
}

type ItemSpec struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Star     bool   `yaml:"star"`
	Released string `yaml:"released"`
}

type BannerSpec struct {
	ID     int64  `yaml:"id"`
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"` // "character" | "weapon"
	RateUp int64  `yaml:"rate_up"`
	Cutoff string `yaml:"cutoff"`
}

// DateLayout is the layout of released and cutoff dates.
const DateLayout = "2006-01-02"
