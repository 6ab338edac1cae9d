package enrichment

import (
	"github.com/kapu/lead-analyzer-go/internal/domain"
)

// Strategy is the AI part of an analysis. Field names follow the
// profile-shaped payload the workspace normalizer reads.
type Strategy struct {
	PhotoAnalysis      string                `json:"photo_analysis"`
	Gender             string                `json:"gender,omitempty"`
	BioAnalysis        domain.BioAnalysis    `json:"bio_analysis"`
	ConnectionPoints   []string              `json:"connection_points"`
	SalesOpportunities []string              `json:"sales_opportunities"`
	Tactics            []domain.Tactic       `json:"tactics,omitempty"`
	Messages           []domain.Message      `json:"messages,omitempty"`
	Ideas              []domain.Idea         `json:"ideas,omitempty"`
	Triggers           []domain.Trigger      `json:"triggers,omitempty"`
	LeadInterests      []domain.LeadInterest `json:"lead_interests,omitempty"`
	PostInsights       []PostInsight         `json:"post_insights,omitempty"`
	ApproachScript     string                `json:"approach_script"`
	ConversationGuide  string                `json:"conversation_guide"`
	ExecutiveSummary   string                `json:"executive_summary"`
}

// PostInsight annotates the recent post at Index.
type PostInsight struct {
	Index       int    `json:"index"`
	Insight     string `json:"insight"`
	Opportunity string `json:"opportunity"`
	Theme       string `json:"theme"`
}

// Payload is what the analyze action returns.
type Payload struct {
	Profile domain.ScrapedProfile `json:"profile"`
	Strategy
	RecentPosts []domain.Post `json:"recent_posts"`

	// Source is "ai" or "fallback".
	Source   string `json:"source"`
	Provider string `json:"provider,omitempty"`
}

// ConnectionStatus answers test_connection.
type ConnectionStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// FollowUpReply is the follow_up answer.
type FollowUpReply struct {
	Message string `json:"follow_up_message"`
	Tips    string `json:"tips,omitempty"`
}

func (s Strategy) usable() bool {
	return len(s.ConnectionPoints) > 0 || s.ApproachScript != "" || len(s.Messages) > 0
}

// mergePosts turns scraped posts into analyzed posts and attaches any insight
// whose index points at one of them.
func mergePosts(scraped []domain.ScrapedPost, insights []PostInsight) []domain.Post {
	posts := make([]domain.Post, 0, len(scraped))
	for _, sp := range scraped {
		t := domain.PostTypeImage
		if sp.IsVideo {
			t = domain.PostTypeVideo
		}
		posts = append(posts, domain.Post{
			Type:      t,
			Caption:   sp.Caption,
			Thumbnail: sp.Thumbnail,
			Shortcode: sp.Shortcode,
			Likes:     sp.Likes,
			Comments:  sp.Comments,
		})
	}
	for _, in := range insights {
		if in.Index < 0 || in.Index >= len(posts) {
			continue
		}
		p := &posts[in.Index]
		p.Insight = in.Insight
		p.Opportunity = in.Opportunity
		p.Theme = in.Theme
	}
	return posts
}
