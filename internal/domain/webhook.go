package domain

type WebhookAction string

const (
	ActionAnalyzeProfile WebhookAction = "analyze_profile"
	ActionFollowUp       WebhookAction = "follow_up"
	ActionTestConnection WebhookAction = "test_connection"
)

func (a WebhookAction) IsValid() bool {
	switch a {
	case ActionAnalyzeProfile, ActionFollowUp, ActionTestConnection:
		return true
	default:
		return false
	}
}

// WebhookRequest is the body posted to the analysis collaborator. Which
// fields are set depends on Action.
type WebhookRequest struct {
	Action              WebhookAction    `json:"action"`
	Username            string           `json:"username,omitempty"`
	URL                 string           `json:"url,omitempty"`
	TrainingData        *TrainingProfile `json:"training_data,omitempty"`
	LeadProfile         *LeadProfile     `json:"lead_profile,omitempty"`
	LeadResponse        string           `json:"lead_response,omitempty"`
	ConversationHistory string           `json:"conversation_history,omitempty"`
}

func NewAnalyzeRequest(username, url string, training TrainingProfile) WebhookRequest {
	return WebhookRequest{
		Action:       ActionAnalyzeProfile,
		Username:     username,
		URL:          url,
		TrainingData: &training,
	}
}

func NewFollowUpRequest(profile LeadProfile, leadResponse, conversation string, training TrainingProfile) WebhookRequest {
	return WebhookRequest{
		Action:              ActionFollowUp,
		Username:            profile.Username,
		LeadProfile:         &profile,
		LeadResponse:        leadResponse,
		ConversationHistory: conversation,
		TrainingData:        &training,
	}
}

func NewTestConnectionRequest() WebhookRequest {
	return WebhookRequest{Action: ActionTestConnection}
}
