package models

// Config represents the parsed assetflow.yaml (or assetflow.toml) project file.
// All glob patterns and output paths are relative to SourceDir unless noted.
type Config struct {
	// Root is the project directory: the config file's directory, or the
	// working directory when there is no file. Not read from the file.
	Root string `yaml:"-" toml:"-" json:"-"`

	SourceDir string          `yaml:"source_dir" toml:"source_dir" json:"source_dir"`
	OutputDir string          `yaml:"output_dir" toml:"output_dir" json:"output_dir"`
	LogLevel  string          `yaml:"log_level,omitempty" toml:"log_level,omitempty" json:"log_level,omitempty"`
	Styles    StylesConfig    `yaml:"styles" toml:"styles" json:"styles"`
	Scripts   ScriptsConfig   `yaml:"scripts" toml:"scripts" json:"scripts"`
	Templates TemplatesConfig `yaml:"templates" toml:"templates" json:"templates"`
	Images    ImagesConfig    `yaml:"images" toml:"images" json:"images"`
	Lint      LintConfig      `yaml:"lint" toml:"lint" json:"lint"`
	Markup    MarkupConfig    `yaml:"markup" toml:"markup" json:"markup"`
	Server    ServerConfig    `yaml:"server" toml:"server" json:"server"`
	Watch     WatchConfig     `yaml:"watch" toml:"watch" json:"watch"`
	Build     BuildConfig     `yaml:"build" toml:"build" json:"build"`
}

type StylesConfig struct {
	Sources  []string `yaml:"sources" toml:"sources" json:"sources"`
	Output   string   `yaml:"output" toml:"output" json:"output"`
	Watch    []string `yaml:"watch" toml:"watch" json:"watch"`
	Compiler string   `yaml:"compiler" toml:"compiler" json:"compiler"` // sass executable
	Targets  []string `yaml:"targets" toml:"targets" json:"targets"`    // e.g. "chrome58", "safari11"
}

type ScriptsConfig struct {
	Sources []string `yaml:"sources" toml:"sources" json:"sources"`
	Output  string   `yaml:"output" toml:"output" json:"output"`
	Watch   []string `yaml:"watch" toml:"watch" json:"watch"`
	Target  string   `yaml:"target" toml:"target" json:"target"` // e.g. "es2017"
}

type TemplatesConfig struct {
	Sources []string       `yaml:"sources" toml:"sources" json:"sources"`
	Output  string         `yaml:"output" toml:"output" json:"output"` // directory, "" = source root
	Watch   []string       `yaml:"watch" toml:"watch" json:"watch"`
	Pretty  *bool          `yaml:"pretty,omitempty" toml:"pretty,omitempty" json:"pretty,omitempty"`
	Data    map[string]any `yaml:"data,omitempty" toml:"data,omitempty" json:"data,omitempty"`
}

// IsPretty reports whether rendered HTML should be indented. Defaults to true.
func (t TemplatesConfig) IsPretty() bool {
	return t.Pretty == nil || *t.Pretty
}

type ImagesConfig struct {
	Sources        []string `yaml:"sources" toml:"sources" json:"sources"`
	Base           string   `yaml:"base" toml:"base" json:"base"`     // stripped from source paths
	Output         string   `yaml:"output" toml:"output" json:"output"` // relative to OutputDir
	JPEGQuality    int      `yaml:"jpeg_quality" toml:"jpeg_quality" json:"jpeg_quality"`
	SkipLargerThan string   `yaml:"skip_larger_than" toml:"skip_larger_than" json:"skip_larger_than"`
	Concurrency    int      `yaml:"concurrency" toml:"concurrency" json:"concurrency"`
}

type LintConfig struct {
	Sources     []string `yaml:"sources" toml:"sources" json:"sources"`
	Rules       []string `yaml:"rules,omitempty" toml:"rules,omitempty" json:"rules,omitempty"` // empty = all rules
	FailOnError *bool    `yaml:"fail_on_error,omitempty" toml:"fail_on_error,omitempty" json:"fail_on_error,omitempty"`
}

// ShouldFail reports whether violations fail the task. Defaults to true.
func (l LintConfig) ShouldFail() bool {
	return l.FailOnError == nil || *l.FailOnError
}

// MarkupConfig lists raw markup files whose changes only trigger a reload.
type MarkupConfig struct {
	Watch []string `yaml:"watch" toml:"watch" json:"watch"`
}

type ServerConfig struct {
	Host string `yaml:"host" toml:"host" json:"host"`
	Port int    `yaml:"port" toml:"port" json:"port"`
}

type WatchConfig struct {
	DelayMs int `yaml:"delay_ms" toml:"delay_ms" json:"delay_ms"`
}

type BuildConfig struct {
	Preflight *bool    `yaml:"preflight,omitempty" toml:"preflight,omitempty" json:"preflight,omitempty"`
	Assets    []string `yaml:"assets" toml:"assets" json:"assets"`
}

// RunPreflight reports whether build lints and transforms before cleaning. Defaults to true.
func (b BuildConfig) RunPreflight() bool {
	return b.Preflight == nil || *b.Preflight
}
