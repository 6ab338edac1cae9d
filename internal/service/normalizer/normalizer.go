// Package normalizer absorbs the upstream analysis payload formats into one
// canonical domain.AnalysisResult.
package normalizer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kapu/lead-analyzer-go/internal/constants"
	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"github.com/tidwall/gjson"
)

// Shape is the payload format discriminator.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeProfile carries a top-level "profile" object.
	ShapeProfile
	// ShapeStatusWrapper is {status:"success", data:{...}} with ai_analysis nested in data.
	ShapeStatusWrapper
)

func (s Shape) String() string {
	switch s {
	case ShapeProfile:
		return "profile"
	case ShapeStatusWrapper:
		return "status_wrapper"
	default:
		return "unknown"
	}
}

// Detect reports which format raw is in. The profile format wins when both match.
func Detect(raw []byte) Shape {
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return ShapeUnknown
	}
	if present(root.Get("profile")) {
		return ShapeProfile
	}
	if root.Get("status").Type == gjson.String && root.Get("status").Str == "success" && present(root.Get("data")) {
		return ShapeStatusWrapper
	}
	return ShapeUnknown
}

// Normalize maps raw into an AnalysisResult. Any JSON input either normalizes
// with defaults filled in or fails with InvalidResponseShape; non-JSON input
// fails with MalformedJSON. Profile username falls back to fallbackUsername.
func Normalize(raw []byte, fallbackUsername string) (*domain.AnalysisResult, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.NewMalformedJSON(raw)
	}

	root := gjson.ParseBytes(raw)

	var result *domain.AnalysisResult
	switch Detect(raw) {
	case ShapeProfile:
		result = fromProfileShape(root, fallbackUsername)
	case ShapeStatusWrapper:
		result = fromStatusWrapper(root, fallbackUsername)
	default:
		return nil, errors.NewInvalidResponseShape(raw)
	}

	result.EnsureDefaults()
	return result, nil
}

func fromProfileShape(root gjson.Result, fallbackUsername string) *domain.AnalysisResult {
	p := root.Get("profile")

	return &domain.AnalysisResult{
		Profile: domain.LeadProfile{
			Username:   textOr(p.Get("username"), fallbackUsername),
			FullName:   text(p.Get("full_name")),
			ProfilePic: text(first(p.Get("profile_pic"), p.Get("profilePicUrl"))),
			Bio:        text(p.Get("bio")),
			Followers:  textOr(first(p.Get("followers_formatted"), p.Get("followers")), "0"),
			Following:  textOr(first(p.Get("following_formatted"), p.Get("following")), "0"),
			Posts:      textOr(first(p.Get("posts_formatted"), p.Get("posts")), "0"),
			Website:    text(p.Get("website")),
			Category:   text(p.Get("category")),
			IsBusiness: present(p.Get("is_business")),
		},
		Tactics:       tactics(root.Get("tactics")),
		Messages:      messages(root.Get("messages")),
		Ideas:         ideas(root.Get("ideas")),
		Triggers:      triggers(root.Get("triggers")),
		BioAnalysis:   bioAnalysis(root.Get("bio_analysis")),
		Gender:        gender(root.Get("gender")),
		PostsAnalyzed: posts(firstArray(root.Get("recent_posts"), root.Get("posts_analyzed"))),
		LeadInterests: interests(root.Get("lead_interests")),

		PhotoAnalysis:      text(root.Get("photo_analysis")),
		ConnectionPoints:   strs(root.Get("connection_points")),
		SalesOpportunities: strs(root.Get("sales_opportunities")),
		ApproachScript:     text(root.Get("approach_script")),
		ConversationGuide:  text(root.Get("conversation_guide")),
		ExecutiveSummary:   text(root.Get("executive_summary")),
	}
}

func fromStatusWrapper(root gjson.Result, fallbackUsername string) *domain.AnalysisResult {
	d := root.Get("data")
	ai := aiAnalysis(d.Get("ai_analysis"))

	username := textOr(d.Get("username"), fallbackUsername)
	fullName := text(first(d.Get("full_name"), d.Get("fullName")))

	pic := text(first(d.Get("profile_pic"), d.Get("profilePicUrl"), d.Get("profilePicUrlNoIframeCookies")))
	if pic == "" {
		pic = PlaceholderAvatar(firstNonEmpty(text(d.Get("full_name")), text(d.Get("username")), fallbackUsername))
	}

	return &domain.AnalysisResult{
		Profile: domain.LeadProfile{
			Username:   username,
			FullName:   fullName,
			ProfilePic: pic,
			Bio:        text(first(d.Get("bio"), d.Get("biography"))),
			Followers:  textOr(first(root.Get("metadata.followers"), d.Get("followers")), "0"),
			Following:  textOr(first(d.Get("following"), d.Get("followingCount")), "0"),
			Posts:      textOr(first(d.Get("posts"), d.Get("postsCount")), "0"),
			Website:    text(first(d.Get("website"), d.Get("externalUrl"))),
			Category:   text(first(d.Get("category"), d.Get("businessCategoryName"))),
			IsBusiness: present(first(d.Get("is_business"), d.Get("isBusinessAccount"))),
		},
		Tactics:       tactics(first(root.Get("tactics"), ai.Get("tactics"))),
		Messages:      messages(first(root.Get("messages"), ai.Get("messages"))),
		Ideas:         ideas(first(root.Get("ideas"), ai.Get("ideas"))),
		Triggers:      triggers(first(root.Get("triggers"), ai.Get("triggers"))),
		BioAnalysis:   bioAnalysis(root.Get("bio_analysis")),
		Gender:        gender(root.Get("gender")),
		PostsAnalyzed: posts(array(root.Get("posts_analyzed"))),
		LeadInterests: interests(first(root.Get("lead_interests"), ai.Get("lead_interests"))),

		PhotoAnalysis:      text(ai.Get("photo_analysis")),
		ConnectionPoints:   strs(ai.Get("connection_points")),
		SalesOpportunities: strs(ai.Get("sales_opportunities")),
		ApproachScript:     text(ai.Get("approach_script")),
		ConversationGuide:  text(ai.Get("conversation_guide")),
		ExecutiveSummary:   text(ai.Get("executive_summary")),
	}
}

// aiAnalysis unwraps ai_analysis, which arrives either as an object or as a
// sequence whose first element is the object.
func aiAnalysis(r gjson.Result) gjson.Result {
	if r.IsArray() {
		if head := r.Get("0"); present(head) {
			return head
		}
	}
	return r
}

// PlaceholderAvatar builds the generated avatar URL used when a payload has no picture.
func PlaceholderAvatar(name string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
	return fmt.Sprintf(constants.AvatarConfig.PlaceholderURL, escaped)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func tactics(r gjson.Result) []domain.Tactic {
	out := []domain.Tactic{}
	for _, el := range array(r) {
		if el.Type == gjson.String {
			out = append(out, domain.Tactic{Text: el.Str})
			continue
		}
		out = append(out, domain.Tactic{
			Emoji: text(el.Get("emoji")),
			Text:  text(el.Get("text")),
		})
	}
	return out
}

func messages(r gjson.Result) []domain.Message {
	out := []domain.Message{}
	for _, el := range array(r) {
		if el.Type == gjson.String {
			out = append(out, domain.Message{Text: el.Str})
			continue
		}
		out = append(out, domain.Message{
			Label: text(el.Get("label")),
			Text:  text(first(el.Get("text"), el.Get("message"))),
		})
	}
	return out
}

func ideas(r gjson.Result) []domain.Idea {
	out := []domain.Idea{}
	for _, el := range array(r) {
		if el.IsObject() {
			out = append(out, domain.Idea{Text: text(el.Get("text")), Object: true})
			continue
		}
		out = append(out, domain.Idea{Text: text(el)})
	}
	return out
}

func triggers(r gjson.Result) []domain.Trigger {
	out := []domain.Trigger{}
	for _, el := range array(r) {
		out = append(out, domain.Trigger{
			Icon:  text(el.Get("icon")),
			Title: text(el.Get("title")),
			Text:  text(el.Get("text")),
		})
	}
	return out
}

func interests(r gjson.Result) []domain.LeadInterest {
	out := []domain.LeadInterest{}
	for _, el := range array(r) {
		out = append(out, domain.LeadInterest{
			Category:            text(el.Get("category")),
			Detail:              text(el.Get("detail")),
			ConversationStarter: text(el.Get("conversation_starter")),
		})
	}
	return out
}

func strs(r gjson.Result) []string {
	out := []string{}
	for _, el := range array(r) {
		if s := text(el); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func gender(r gjson.Result) domain.Gender {
	return domain.ParseGender(lower(text(r)))
}

func bioAnalysis(r gjson.Result) domain.BioAnalysis {
	if !present(r) {
		return domain.BioAnalysis{}
	}
	if !r.IsObject() {
		return domain.BioAnalysis{Text: text(r)}
	}

	profile := &domain.BioProfile{
		ProfileType:       text(r.Get("profile_type")),
		CommunicationTips: text(r.Get("communication_tips")),
	}
	if list := r.Get("interests"); list.IsArray() {
		profile.Interests = strs(list)
	} else if s := text(list); s != "" {
		profile.Interests = []string{s}
	}
	return domain.BioAnalysis{Structured: profile}
}

func posts(elements []gjson.Result) []domain.Post {
	out := []domain.Post{}
	for _, el := range elements {
		if !el.IsObject() {
			continue
		}
		out = append(out, domain.Post{
			Type:        postType(el),
			Caption:     text(first(el.Get("caption"), el.Get("summary"))),
			Thumbnail:   text(first(el.Get("thumbnail"), el.Get("displayUrl"), el.Get("thumbnail_src"), el.Get("display_url"))),
			Insight:     text(el.Get("insight")),
			Opportunity: text(el.Get("opportunity")),
			Theme:       text(el.Get("theme")),
			Engagement:  text(el.Get("engagement")),
			Shortcode:   text(el.Get("shortcode")),
			Likes:       int64Of(el.Get("likes")),
			Comments:    int64Of(el.Get("comments")),
		})
	}
	return out
}

func postType(el gjson.Result) domain.PostType {
	switch t := domain.PostType(lower(text(el.Get("type")))); t {
	case domain.PostTypeImage, domain.PostTypeVideo, domain.PostTypeReel:
		return t
	}
	if present(first(el.Get("is_video"), el.Get("isVideo"))) {
		return domain.PostTypeVideo
	}
	return domain.PostTypeImage
}
