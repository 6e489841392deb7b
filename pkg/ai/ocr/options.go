package ocr

// Options for field extraction
type Options struct {
	// Model selection
	Model string

	// Language
	LanguageHints []string

	// TargetVariables restricts the labels the provider should look for.
	TargetVariables []string

	// Strict asks for exactly the targeted labels and nothing else, and makes
	// a schema mismatch in the response an error instead of being repaired.
	Strict bool

	// Document hints
	DocumentType string // "invoice", "receipt", "form", ...

	// Summary asks for a one-sentence description of the document.
	Summary bool

	// MaxTokens caps the provider's response length.
	MaxTokens int

	// Provider-specific
	ProviderOptions map[string]any
}

type Option func(*Options)

// WithTargetVariables scopes extraction to the given labels.
func WithTargetVariables(labels ...string) Option {
	return func(o *Options) { o.TargetVariables = append(o.TargetVariables, labels...) }
}

// WithStrictMode requests exactly the targeted labels.
func WithStrictMode() Option {
	return func(o *Options) { o.Strict = true }
}

func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}

func WithLanguageHints(langs ...string) Option {
	return func(o *Options) { o.LanguageHints = langs }
}

func WithDocumentType(docType string) Option {
	return func(o *Options) { o.DocumentType = docType }
}

func WithSummary() Option {
	return func(o *Options) { o.Summary = true }
}

func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

func WithProviderOption(key string, value any) Option {
	return func(o *Options) {
		if o.ProviderOptions == nil {
			o.ProviderOptions = make(map[string]any)
		}
		o.ProviderOptions[key] = value
	}
}

func DefaultOptions() *Options {
	return &Options{
		MaxTokens:       2048,
		ProviderOptions: make(map[string]any),
	}
}

func ApplyOptions(opts ...Option) *Options {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}
