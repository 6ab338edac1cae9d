package prompt

import "github.com/kapu/lead-analyzer-go/internal/domain"

type PhotoAnalysisData struct {
	Username string
	FullName string
	Category string
}

type ProfileAnalysisData struct {
	Profile          domain.ScrapedProfile
	PhotoAnalysis    string
	Training         domain.TrainingProfile
	ToneDescription  string
	StyleDescription string
}

type FollowUpData struct {
	Profile          domain.LeadProfile
	LeadResponse     string
	Conversation     string
	Training         domain.TrainingProfile
	ToneDescription  string
	StyleDescription string
}

// NewProfileAnalysisData fills the tone and style descriptions from training.
func NewProfileAnalysisData(profile domain.ScrapedProfile, photo string, training domain.TrainingProfile) ProfileAnalysisData {
	training = training.Normalized()
	return ProfileAnalysisData{
		Profile:          profile,
		PhotoAnalysis:    photo,
		Training:         training,
		ToneDescription:  training.CommunicationTone.Description(),
		StyleDescription: training.ApproachStyle.Description(),
	}
}

func NewFollowUpData(profile domain.LeadProfile, leadResponse, conversation string, training domain.TrainingProfile) FollowUpData {
	training = training.Normalized()
	return FollowUpData{
		Profile:          profile,
		LeadResponse:     leadResponse,
		Conversation:     conversation,
		Training:         training,
		ToneDescription:  training.CommunicationTone.Description(),
		StyleDescription: training.ApproachStyle.Description(),
	}
}
