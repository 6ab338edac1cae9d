package domain

import (
	"bytes"
	"encoding/json"
)

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// ParseGender maps anything outside male/female to unknown.
func ParseGender(s string) Gender {
	switch Gender(s) {
	case GenderMale, GenderFemale:
		return Gender(s)
	default:
		return GenderUnknown
	}
}

type PostType string

const (
	PostTypeImage PostType = "image"
	PostTypeVideo PostType = "video"
	PostTypeReel  PostType = "reel"
)

func (p PostType) IsMotion() bool {
	return p == PostTypeVideo || p == PostTypeReel
}

type LeadProfile struct {
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	ProfilePic string `json:"profile_pic"`
	Bio        string `json:"bio"`
	Followers  string `json:"followers"`
	Following  string `json:"following"`
	Posts      string `json:"posts"`
	Website    string `json:"website"`
	Category   string `json:"category"`
	IsBusiness bool   `json:"is_business"`
}

type Tactic struct {
	Emoji string `json:"emoji"`
	Text  string `json:"text"`
}

type Message struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type Trigger struct {
	Icon  string `json:"icon"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

type LeadInterest struct {
	Category            string `json:"category"`
	Detail              string `json:"detail"`
	ConversationStarter string `json:"conversation_starter"`
}

// Chip is the text the composer offers for this interest.
func (l LeadInterest) Chip() string {
	if l.ConversationStarter != "" {
		return l.ConversationStarter
	}
	return l.Detail
}

type Post struct {
	Type        PostType `json:"type"`
	Caption     string   `json:"caption"`
	Thumbnail   string   `json:"thumbnail"`
	Insight     string   `json:"insight,omitempty"`
	Opportunity string   `json:"opportunity,omitempty"`
	Theme       string   `json:"theme,omitempty"`
	Engagement  string   `json:"engagement,omitempty"`
	Shortcode   string   `json:"shortcode,omitempty"`
	Likes       int64    `json:"likes,omitempty"`
	Comments    int64    `json:"comments,omitempty"`
}

// Idea is either a bare string or an object with a text member. The incoming
// form is kept so a re-export looks like what came in.
type Idea struct {
	Text   string
	Object bool
}

func (i Idea) MarshalJSON() ([]byte, error) {
	if i.Object {
		return json.Marshal(struct {
			Text string `json:"text"`
		}{i.Text})
	}
	return json.Marshal(i.Text)
}

func (i *Idea) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*i = Idea{Text: obj.Text, Object: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*i = Idea{Text: s}
	return nil
}

type BioProfile struct {
	ProfileType       string   `json:"profile_type,omitempty"`
	Interests         []string `json:"interests,omitempty"`
	CommunicationTips string   `json:"communication_tips,omitempty"`
}

// BioAnalysis is free text or a structured profile. Structured wins when set.
type BioAnalysis struct {
	Text       string
	Structured *BioProfile
}

func (b BioAnalysis) IsEmpty() bool {
	return b.Structured == nil && b.Text == ""
}

func (b BioAnalysis) MarshalJSON() ([]byte, error) {
	if b.Structured != nil {
		return json.Marshal(b.Structured)
	}
	return json.Marshal(b.Text)
}

func (b *BioAnalysis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*b = BioAnalysis{}
		return nil
	case data[0] == '{':
		var p BioProfile
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*b = BioAnalysis{Structured: &p}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = BioAnalysis{Text: s}
	return nil
}

// AnalysisResult is the canonical record every upstream payload is normalized into.
// Slices are never nil after normalization.
type AnalysisResult struct {
	Profile       LeadProfile    `json:"profile"`
	Tactics       []Tactic       `json:"tactics"`
	Messages      []Message      `json:"messages"`
	Ideas         []Idea         `json:"ideas"`
	Triggers      []Trigger      `json:"triggers"`
	BioAnalysis   BioAnalysis    `json:"bio_analysis"`
	Gender        Gender         `json:"gender"`
	PostsAnalyzed []Post         `json:"posts_analyzed"`
	LeadInterests []LeadInterest `json:"lead_interests"`

	PhotoAnalysis      string   `json:"photo_analysis"`
	ConnectionPoints   []string `json:"connection_points"`
	SalesOpportunities []string `json:"sales_opportunities"`
	ApproachScript     string   `json:"approach_script"`
	ConversationGuide  string   `json:"conversation_guide"`
	ExecutiveSummary   string   `json:"executive_summary"`

	// Demo marks a locally generated result used while the webhook is unreachable.
	Demo bool `json:"demo,omitempty"`
}

// EnsureDefaults replaces nil slices and an empty gender with their defaults.
func (r *AnalysisResult) EnsureDefaults() {
	if r.Tactics == nil {
		r.Tactics = []Tactic{}
	}
	if r.Messages == nil {
		r.Messages = []Message{}
	}
	if r.Ideas == nil {
		r.Ideas = []Idea{}
	}
	if r.Triggers == nil {
		r.Triggers = []Trigger{}
	}
	if r.PostsAnalyzed == nil {
		r.PostsAnalyzed = []Post{}
	}
	if r.LeadInterests == nil {
		r.LeadInterests = []LeadInterest{}
	}
	if r.ConnectionPoints == nil {
		r.ConnectionPoints = []string{}
	}
	if r.SalesOpportunities == nil {
		r.SalesOpportunities = []string{}
	}
	r.Gender = ParseGender(string(r.Gender))
}
