package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"conecte/models"
)

var (
	namePattern        = regexp.MustCompile(`(?i)\{\{name\}\}`)
	emailPattern       = regexp.MustCompile(`(?i)\{\{email\}\}`)
	companyPattern     = regexp.MustCompile(`(?i)\{\{company\}\}`)
	buttonLinkPattern  = regexp.MustCompile(`(?i)\{\{button_link\}\}`)
	unsubscribePattern = regexp.MustCompile(`(?i)\{\{unsubscribe_link\}\}`)
	hrefPattern        = regexp.MustCompile(`href="(https?://[^"]+)"`)
)

// RenderContext carries everything needed to personalize one message for
// one recipient.
type RenderContext struct {
	Lead       models.Lead
	ButtonLink string
	BaseURL    string
	CampaignID string
	LogID      string
}

// RenderSubject substitutes recipient placeholders in a subject line.
func RenderSubject(subject string, lead models.Lead) string {
	subject = namePattern.ReplaceAllString(subject, lead.Name)
	subject = emailPattern.ReplaceAllString(subject, lead.Email)
	subject = companyPattern.ReplaceAllString(subject, lead.Company)
	return subject
}

// RenderEmail personalizes an HTML body and injects tracking: every
// absolute link is rewritten through the click redirect, and an open
// pixel is appended. Links already pointing at a tracking endpoint are
// left alone, and the rewrite runs in a single pass so produced URLs
// are never matched again.
func RenderEmail(html string, rc RenderContext) string {
	buttonLink := rc.ButtonLink
	if buttonLink == "" {
		buttonLink = "#"
	}

	html = namePattern.ReplaceAllString(html, rc.Lead.Name)
	html = emailPattern.ReplaceAllString(html, rc.Lead.Email)
	html = companyPattern.ReplaceAllString(html, rc.Lead.Company)
	html = buttonLinkPattern.ReplaceAllString(html, buttonLink)
	html = unsubscribePattern.ReplaceAllString(html, UnsubscribeURL(rc.BaseURL, rc.LogID))

	html = injectClickTracking(html, rc)

	pixel := fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`,
		OpenPixelURL(rc.BaseURL, rc.LogID))
	return html + pixel
}

func injectClickTracking(html string, rc RenderContext) string {
	return hrefPattern.ReplaceAllStringFunc(html, func(match string) string {
		original := match[len(`href="`) : len(match)-1]
		if strings.Contains(original, "/api/t/") {
			return match
		}
		return fmt.Sprintf(`href="%s"`, ClickTrackURL(rc.BaseURL, rc.LogID, rc.CampaignID, original))
	})
}

// OpenPixelURL is the open-tracking pixel endpoint for a delivery log.
func OpenPixelURL(baseURL, logID string) string {
	return fmt.Sprintf("%s/api/t/o/%s", strings.TrimRight(baseURL, "/"), logID)
}

// ClickTrackURL wraps a destination URL in the click redirect endpoint.
func ClickTrackURL(baseURL, logID, campaignID, destination string) string {
	return fmt.Sprintf("%s/api/t/c/%s?u=%s&cid=%s",
		strings.TrimRight(baseURL, "/"), logID, url.QueryEscape(destination), campaignID)
}

// UnsubscribeURL is the one-click unsubscribe endpoint for a delivery log.
func UnsubscribeURL(baseURL, logID string) string {
	return fmt.Sprintf("%s/api/t/u/%s", strings.TrimRight(baseURL, "/"), logID)
}
