package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/kapu/lead-analyzer-go/internal/constants"
	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/util"
	"go.uber.org/zap"
)

var (
	statValueRegex   = regexp.MustCompile(`[\d.,]+[KMkm]?`)
	titleRegex       = regexp.MustCompile(`(.+?)\s*\(@?([\w.]+)\)`)
	seePhotosRegex   = regexp.MustCompile(`See Instagram photos and videos from .+$`)
	descriptionStats = regexp.MustCompile(`([\d.,]+[KMkm]?)\s+Followers,\s*([\d.,]+[KMkm]?)\s+Following,\s*([\d.,]+[KMkm]?)\s+Posts`)
)

var privateMarkers = []string{"Esta conta é privada", "This account is private"}

// RodRenderer renders pages in a headless Chrome launched per call.
type RodRenderer struct {
	bin    string
	logger *zap.Logger
}

// NewRodRenderer uses bin as the browser binary, or lets rod find or download one when empty.
func NewRodRenderer(bin string, logger *zap.Logger) *RodRenderer {
	return &RodRenderer{bin: bin, logger: util.OrNop(logger)}
}

func (r *RodRenderer) Render(ctx context.Context, url string) (string, error) {
	l := launcher.New().
		Context(ctx).
		Headless(true).
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("window-size", "1920,1080")
	if r.bin != "" {
		l = l.Bin(r.bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect to chrome: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}

	if err := (proto.NetworkSetUserAgentOverride{UserAgent: constants.InstagramConfig.UserAgent}).Call(page); err != nil {
		r.logger.Debug("Failed to set user agent", zap.Error(err))
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1.0,
	}).Call(page); err != nil {
		r.logger.Debug("Failed to set viewport", zap.Error(err))
	}

	r.logger.Debug("Rendering page", zap.String("url", url))
	nav := page.Timeout(constants.Timeouts.Navigation)
	if err := nav.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := nav.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}
	if _, err := page.Timeout(constants.InstagramConfig.HeaderWait).Element("header"); err != nil {
		r.logger.Debug("Profile header did not appear", zap.String("url", url), zap.Error(err))
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// ParseProfileHTML extracts what a rendered profile page exposes. Pages with
// neither a profile header nor Open Graph data are treated as missing profiles.
func ParseProfileHTML(html, username string) (*domain.ScrapedProfile, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	description := metaContent(doc, "og:description")
	header := doc.Find("header").First()
	if header.Length() == 0 && description == "" {
		return nil, errProfileMissing
	}

	var stats []string
	header.Find("section ul li").Each(func(_ int, li *goquery.Selection) {
		stats = append(stats, strings.TrimSpace(li.Text()))
	})

	profile := &domain.ScrapedProfile{
		Username:    username,
		FullName:    username,
		Posts:       statAt(stats, 0),
		Followers:   statAt(stats, 1),
		Following:   statAt(stats, 2),
		RecentPosts: []domain.ScrapedPost{},
		Source:      "browser",
	}

	if m := titleRegex.FindStringSubmatch(title); m != nil {
		profile.FullName = strings.TrimSpace(m[1])
	}

	if len(stats) == 0 {
		if m := descriptionStats.FindStringSubmatch(description); m != nil {
			profile.Followers, profile.Following, profile.Posts = m[1], m[2], m[3]
		}
	}

	profile.ProfilePic = util.FirstNonEmpty(
		attr(header.Find("img").First(), "src"),
		attr(doc.Find(`img[alt*="profile"]`).First(), "src"),
		metaContent(doc, "og:image"),
	)

	bio := firstText(header,
		"section > div:last-child span",
		"section div span:not([class])",
	)
	if bio == "" {
		bio = BioFromDescription(description)
	}
	profile.Bio = bio

	body := doc.Find("body").Text()
	for _, marker := range privateMarkers {
		if strings.Contains(body, marker) {
			profile.IsPrivate = true
			break
		}
	}

	profile.FollowerCount = util.ParseCount(profile.Followers)
	return profile, nil
}

// BioFromDescription pulls the bio out of an og:description of the form
// "X Followers, Y Following, Z Posts - <bio> See Instagram photos and videos from ...".
func BioFromDescription(description string) string {
	parts := strings.Split(description, " - ")
	if len(parts) < 2 {
		return ""
	}
	bio := strings.Join(parts[1:], " - ")
	return strings.TrimSpace(seePhotosRegex.ReplaceAllString(bio, ""))
}

func statAt(stats []string, i int) string {
	if i >= len(stats) {
		return "0"
	}
	if m := statValueRegex.FindString(stats[i]); m != "" {
		return m
	}
	return "0"
}

func metaContent(doc *goquery.Document, property string) string {
	v, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return strings.TrimSpace(v)
}

func attr(sel *goquery.Selection, name string) string {
	v, _ := sel.Attr(name)
	return strings.TrimSpace(v)
}

func firstText(root *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if text := strings.TrimSpace(root.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
