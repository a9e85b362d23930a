package parsers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractInclusions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		css  string
		want []string
	}{
		{
			name: "SingleQuotedInSubdirectory",
			base: "d/style.css",
			css:  ".x{background:url('img/x.png')}",
			want: []string{"d/img/x.png"},
		},
		{
			name: "DoubleQuoted",
			base: "style.css",
			css:  `body { background: url( "bg.jpg" ) }`,
			want: []string{"bg.jpg"},
		},
		{
			name: "Unquoted",
			base: "css/site.css",
			css:  "@font-face { src: url(../fonts/a.woff) }",
			want: []string{"fonts/a.woff"},
		},
		{
			name: "UnquotedTrailingSpace",
			base: "site.css",
			css:  "a { background: url( x.png ) }",
			want: []string{"x.png"},
		},
		{
			name: "CaseInsensitive",
			base: "site.css",
			css:  "a { background: URL(x.png) }",
			want: []string{"x.png"},
		},
		{
			name: "CommentSkipped",
			base: "site.css",
			css:  "/* url(old.png) */ a { background: url(new.png) }",
			want: []string{"new.png"},
		},
		{
			name: "MultiStarComment",
			base: "site.css",
			css:  "/*** url(a.png) **/ b { background: url(b.png) }",
			want: []string{"b.png"},
		},
		{
			name: "StringLiteralSkipped",
			base: "site.css",
			css:  `a::before { content: "url(fake.png)" } b { background: url(real.png) }`,
			want: []string{"real.png"},
		},
		{
			name: "SchemeRejected",
			base: "site.css",
			css:  "a { background: url(http://cdn.example.com/x.png) } b { background: url(data:image/png;base64,AAAA) }",
			want: nil,
		},
		{
			name: "EmptyPayload",
			base: "site.css",
			css:  `a { background: url("") }`,
			want: nil,
		},
		{
			name: "PathCleaned",
			base: "d/site.css",
			css:  "a { background: url(./img//a/../x.png) }",
			want: []string{"d/img/x.png"},
		},
		{
			name: "OrderAndDuplicates",
			base: "site.css",
			css:  "a{background:url(b.png)} c{background:url(a.png)} d{background:url(b.png)}",
			want: []string{"b.png", "a.png", "b.png"},
		},
		{
			name: "FragmentDiscarded",
			base: "site.css",
			css:  "a{mask:url(icons.svg#star)}",
			want: []string{"icons.svg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractInclusions(tt.base, tt.css))
		})
	}
}

func TestStyleParser_Parse(t *testing.T) {
	t.Parallel()

	parser := NewStyleParser()
	assert.Equal(t, "stylesheet", parser.Kind())

	doc, err := parser.Parse(context.Background(), "theme/main.css", []byte(`
		@import url("reset.css");
		body { background: url('img/bg.png') }
		.logo { background: url('img/bg.png') }
	`))
	require.NoError(t, err)

	assert.Nil(t, doc.Title)
	assert.Empty(t, doc.Links)
	assert.Equal(t, []string{"theme/img/bg.png", "theme/reset.css"}, doc.SortedInclusions())
}
