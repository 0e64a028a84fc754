package publish

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/salcido/reddibot/internal/domain"
)

// Composer renders the status text for an item.
type Composer struct {
	image *template.Template
	text  *template.Template
}

type messageData struct {
	Title     string
	ShortLink string
	Group     string
}

// NewComposer parses the image and text templates. Both see .Title,
// .ShortLink and .Group.
func NewComposer(imageTmpl, textTmpl string) (*Composer, error) {
	img, err := template.New("image").Parse(imageTmpl)
	if err != nil {
		return nil, fmt.Errorf("parse image template: %w", err)
	}
	txt, err := template.New("text").Parse(textTmpl)
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	return &Composer{image: img, text: txt}, nil
}

// Compose renders the status for item according to its category.
func (c *Composer) Compose(item domain.Item) (string, error) {
	tmpl := c.image
	if item.Category == domain.CategoryText {
		tmpl = c.text
	}
	var sb strings.Builder
	err := tmpl.Execute(&sb, messageData{
		Title:     item.Title,
		ShortLink: item.ShortLink,
		Group:     item.GroupKey,
	})
	if err != nil {
		return "", fmt.Errorf("render %s status: %w", tmpl.Name(), err)
	}
	return sb.String(), nil
}
