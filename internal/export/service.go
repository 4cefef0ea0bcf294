package export

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"aula/api/internal/content"
)

type renderer func(ctx context.Context, html string) ([]byte, error)

type output struct {
	render    renderer
	extension string
	mimeType  string
}

// Service renders items through headless Chrome (PDF) or pandoc (DOCX).
type Service struct {
	outputs map[Format]output
}

func NewService() *Service {
	return &Service{outputs: map[Format]output{
		FormatPDF:  {render: renderPDF, extension: "pdf", mimeType: "application/pdf"},
		FormatDOCX: {render: renderDOCX, extension: "docx", mimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	}}
}

// Export renders item in the requested format. Access checks are the
// caller's responsibility.
func (s *Service) Export(ctx context.Context, item content.Item, format Format) (*Result, error) {
	out, ok := s.outputs[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	html, err := RenderItemHTML(TemplateData{
		Kind:         string(item.Kind),
		Name:         item.Name,
		Description:  item.Description,
		Status:       string(item.Status),
		Owner:        item.OwnerID,
		Organization: item.OrganizationID,
		Version:      item.Version,
		PublishedAt:  item.PublishedAt,
		ContentHTML:  template.HTML(BlocksToHTML(item.Body)),
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	data, err := out.render(ctx, html)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     data,
		Filename: Filename(item, out.extension),
		MimeType: out.mimeType,
	}, nil
}

const maxSlugLength = 60

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Filename names an export after the item, e.g. "quiz-algebra-basica-v3.pdf".
func Filename(item content.Item, extension string) string {
	return fmt.Sprintf("%s-%s-v%d.%s", item.Kind, slug(item.Name), item.Version, extension)
}

// slug folds accents, lowercases and joins ASCII words with '-'.
func slug(name string) string {
	folded, _, err := transform.String(foldMarks, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			if b.Len() >= maxSlugLength {
				break
			}
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "content"
	}
	return b.String()
}
