package aimistral

// OCRRequest is the body of POST /ocr. When DocumentAnnotationFormat is
// set the service also returns a JSON document following that schema.
type OCRRequest struct {
	Model                    string            `json:"model"`
	Document                 DocumentInput     `json:"document"`
	Pages                    []int             `json:"pages,omitempty"`
	IncludeImageBase64       bool              `json:"include_image_base64,omitempty"`
	DocumentAnnotationFormat *AnnotationFormat `json:"document_annotation_format,omitempty"`
	DocumentAnnotationPrompt string            `json:"document_annotation_prompt,omitempty"`
}

// DocumentInput is either {"type":"image_url"} or {"type":"document_url"};
// both accept data URIs.
type DocumentInput struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type OCRResponse struct {
	Pages              []PageData `json:"pages"`
	Model              string     `json:"model"`
	DocumentAnnotation string     `json:"document_annotation,omitempty"`
	UsageInfo          UsageInfo  `json:"usage_info"`
}

type PageData struct {
	Index      int             `json:"index"`
	Markdown   string          `json:"markdown"`
	Dimensions *PageDimensions `json:"dimensions,omitempty"`
}

type PageDimensions struct {
	DPI    int `json:"dpi"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type UsageInfo struct {
	PagesProcessed int `json:"pages_processed"`
	DocSizeBytes   int `json:"doc_size_bytes"`
}

type AnnotationFormat struct {
	Type       string         `json:"type"`
	JSONSchema map[string]any `json:"json_schema"`
}

// NewAnnotationFormat wraps a JSON schema the way the OCR endpoint expects it.
func NewAnnotationFormat(name string, schema map[string]any, strict bool) *AnnotationFormat {
	return &AnnotationFormat{
		Type: "json_schema",
		JSONSchema: map[string]any{
			"name":   name,
			"schema": schema,
			"strict": strict,
		},
	}
}
