package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/kapu/lead-analyzer-go/internal/constants"
	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/util"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const maxAPIBody = 4 << 20

func (s *ScraperService) fetchFromPublicAPI(ctx context.Context, username string) (*domain.ScrapedProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.Timeouts.PublicAPI)
	defer cancel()

	endpoint := s.profileInfoURL + "?username=" + url.QueryEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", constants.InstagramConfig.UserAgent)
	req.Header.Set("X-IG-App-ID", constants.InstagramConfig.AppID)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusTooManyRequests:
		s.logger.Warn("Public API rate limited or auth required",
			zap.String("username", username),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("public API status %d", resp.StatusCode)
	case http.StatusNotFound:
		return nil, errProfileMissing
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
	if err != nil {
		return nil, err
	}

	return parseProfileJSON(body)
}

// parseProfileJSON maps a web_profile_info body onto ScrapedProfile.
func parseProfileJSON(body []byte) (*domain.ScrapedProfile, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("public API returned invalid JSON")
	}

	user := gjson.GetBytes(body, "data.user")
	if !user.IsObject() {
		return nil, errProfileMissing
	}

	followers := user.Get("edge_followed_by.count").Int()
	return &domain.ScrapedProfile{
		Username:      user.Get("username").String(),
		FullName:      user.Get("full_name").String(),
		Bio:           user.Get("biography").String(),
		Followers:     util.FormatCount(followers),
		Following:     util.FormatCount(user.Get("edge_follow.count").Int()),
		Posts:         util.FormatCount(user.Get("edge_owner_to_timeline_media.count").Int()),
		ProfilePic:    util.FirstNonEmpty(user.Get("profile_pic_url_hd").String(), user.Get("profile_pic_url").String()),
		IsVerified:    user.Get("is_verified").Bool(),
		IsBusiness:    user.Get("is_business_account").Bool(),
		IsPrivate:     user.Get("is_private").Bool(),
		Category:      util.FirstNonEmpty(user.Get("category_name").String(), user.Get("business_category_name").String()),
		Website:       user.Get("external_url").String(),
		RecentPosts:   recentPosts(user.Get("edge_owner_to_timeline_media.edges")),
		FollowerCount: followers,
		Source:        "api",
	}, nil
}

func recentPosts(edges gjson.Result) []domain.ScrapedPost {
	posts := []domain.ScrapedPost{}
	for i, edge := range edges.Array() {
		if i >= constants.InstagramConfig.MaxRecentPosts {
			break
		}
		node := edge.Get("node")
		posts = append(posts, domain.ScrapedPost{
			ID:        node.Get("id").String(),
			Shortcode: node.Get("shortcode").String(),
			Thumbnail: util.FirstNonEmpty(node.Get("thumbnail_src").String(), node.Get("display_url").String()),
			Caption:   node.Get("edge_media_to_caption.edges.0.node.text").String(),
			Likes:     node.Get("edge_liked_by.count").Int(),
			Comments:  node.Get("edge_media_to_comment.count").Int(),
			IsVideo:   node.Get("is_video").Bool(),
			Timestamp: node.Get("taken_at_timestamp").Int(),
		})
	}
	return posts
}
