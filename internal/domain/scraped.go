package domain

// ScrapedProfile is what either scraper tier returns. Counts are already
// formatted for display ("15K", "1.2M").
type ScrapedProfile struct {
	Username    string        `json:"username"`
	FullName    string        `json:"full_name"`
	Bio         string        `json:"bio"`
	Followers   string        `json:"followers"`
	Following   string        `json:"following"`
	Posts       string        `json:"posts"`
	ProfilePic  string        `json:"profile_pic"`
	IsVerified  bool          `json:"is_verified"`
	IsBusiness  bool          `json:"is_business"`
	IsPrivate   bool          `json:"is_private"`
	Category    string        `json:"category,omitempty"`
	Website     string        `json:"website,omitempty"`
	RecentPosts []ScrapedPost `json:"recent_posts"`

	// FollowerCount keeps the raw number when the tier knows it.
	FollowerCount int64  `json:"-"`
	Source        string `json:"-"`
}

type ScrapedPost struct {
	ID        string `json:"id"`
	Shortcode string `json:"shortcode"`
	Thumbnail string `json:"thumbnail"`
	Caption   string `json:"caption"`
	Likes     int64  `json:"likes"`
	Comments  int64  `json:"comments"`
	IsVideo   bool   `json:"is_video"`
	Timestamp int64  `json:"timestamp"`
}
