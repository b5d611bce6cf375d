package utils

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"conecte/models"
)

func testContext() RenderContext {
	return RenderContext{
		Lead:       models.Lead{Name: "Maria", Email: "maria@example.com", Company: "Acme"},
		ButtonLink: "https://example.com/offer",
		BaseURL:    "http://localhost:3000",
		CampaignID: "camp-1",
		LogID:      "log-1",
	}
}

func TestRenderSubjectSubstitutesCaseInsensitive(t *testing.T) {
	lead := models.Lead{Name: "Maria", Email: "maria@example.com", Company: "Acme"}
	got := RenderSubject("Hi {{Name}} from {{COMPANY}}", lead)
	assert.Equal(t, "Hi Maria from Acme", got)
}

func TestRenderEmailSubstitutesPlaceholders(t *testing.T) {
	html := `<p>Hello {{name}} ({{email}})</p><a href="{{button_link}}">Go</a>`
	got := RenderEmail(html, testContext())

	assert.Contains(t, got, "Hello Maria (maria@example.com)")
	assert.NotContains(t, got, "{{")
}

func TestRenderEmailButtonLinkDefaultsToHash(t *testing.T) {
	rc := testContext()
	rc.ButtonLink = ""
	got := RenderEmail(`<a href="{{button_link}}">Go</a>`, rc)
	assert.Contains(t, got, `href="#"`)
}

func TestRenderEmailAppendsOpenPixel(t *testing.T) {
	got := RenderEmail("<p>Hi</p>", testContext())
	assert.Contains(t, got, `<img src="http://localhost:3000/api/t/o/log-1"`)
	assert.Contains(t, got, `style="display:none"`)
}

func TestRenderEmailRewritesAbsoluteLinks(t *testing.T) {
	got := RenderEmail(`<a href="https://example.com/page?x=1">Read</a>`, testContext())

	assert.Contains(t, got, `href="http://localhost:3000/api/t/c/log-1?u=`)
	assert.Contains(t, got, url.QueryEscape("https://example.com/page?x=1"))
	assert.Contains(t, got, "&cid=camp-1")
}

func TestRenderEmailLeavesRelativeAndTrackedLinks(t *testing.T) {
	rc := testContext()

	relative := RenderEmail(`<a href="/local">Local</a>`, rc)
	assert.Contains(t, relative, `href="/local"`)

	tracked := `<a href="http://localhost:3000/api/t/c/other?u=x">Done</a>`
	got := RenderEmail(tracked, rc)
	assert.Contains(t, got, `href="http://localhost:3000/api/t/c/other?u=x"`)
}

func TestRenderEmailRewriteIsSinglePass(t *testing.T) {
	got := RenderEmail(`<a href="https://example.com/a">A</a><a href="https://example.com/b">B</a>`, testContext())

	// Each destination is wrapped exactly once.
	assert.Equal(t, 2, strings.Count(got, "/api/t/c/log-1?u="))
	assert.NotContains(t, got, url.QueryEscape("/api/t/c/"))
}

func TestRenderEmailUnsubscribeLink(t *testing.T) {
	got := RenderEmail(`<a href="{{unsubscribe_link}}">Stop</a>`, testContext())
	assert.Contains(t, got, `href="http://localhost:3000/api/t/u/log-1"`)
}
