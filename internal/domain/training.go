package domain

import (
	"encoding/json"
	"strings"
)

type CommunicationTone string

const (
	ToneFormal     CommunicationTone = "formal"
	ToneCasual     CommunicationTone = "casual"
	ToneEnergetic  CommunicationTone = "energetic"
	ToneConsultive CommunicationTone = "consultive"
	ToneEmpathetic CommunicationTone = "empathetic"
)

func (t CommunicationTone) IsValid() bool {
	switch t {
	case ToneFormal, ToneCasual, ToneEnergetic, ToneConsultive, ToneEmpathetic:
		return true
	default:
		return false
	}
}

// Description is the phrase handed to the model for this tone.
func (t CommunicationTone) Description() string {
	switch t {
	case ToneFormal:
		return "formal e profissional"
	case ToneEnergetic:
		return "energético e entusiasmado"
	case ToneConsultive:
		return "consultivo e especialista"
	case ToneEmpathetic:
		return "empático e acolhedor"
	default:
		return "casual e amigável"
	}
}

type ApproachStyle string

const (
	StyleDirect       ApproachStyle = "direct"
	StyleCurious      ApproachStyle = "curious"
	StyleStorytelling ApproachStyle = "storytelling"
	StyleValueFirst   ApproachStyle = "value-first"
	StyleRelationship ApproachStyle = "relationship"
)

func (s ApproachStyle) IsValid() bool {
	switch s {
	case StyleDirect, StyleCurious, StyleStorytelling, StyleValueFirst, StyleRelationship:
		return true
	default:
		return false
	}
}

func (s ApproachStyle) Description() string {
	switch s {
	case StyleDirect:
		return "direto ao ponto"
	case StyleStorytelling:
		return "contando histórias"
	case StyleValueFirst:
		return "oferecendo valor primeiro"
	case StyleRelationship:
		return "construindo relacionamento"
	default:
		return "fazendo perguntas curiosas"
	}
}

// TrainingProfile is one operator's sales voice, sent to the analyzer as context.
type TrainingProfile struct {
	UserName          string            `json:"userName,omitempty"`
	UserBusiness      string            `json:"userBusiness,omitempty"`
	UserNiche         string            `json:"userNiche,omitempty"`
	CommunicationTone CommunicationTone `json:"communicationTone"`
	ApproachStyle     ApproachStyle     `json:"approachStyle"`
	MessageExamples   string            `json:"messageExamples,omitempty"`
	ValueProposition  string            `json:"valueProposition,omitempty"`
	TargetAudience    string            `json:"targetAudience,omitempty"`
	AvoidTopics       string            `json:"avoidTopics,omitempty"`
	WhatYouDo         string            `json:"whatYouDo,omitempty"`
	WhatYouDeliver    string            `json:"whatYouDeliver,omitempty"`
	ProblemYouSolve   string            `json:"problemYouSolve,omitempty"`
	YourMethodology   string            `json:"yourMethodology,omitempty"`
}

// Normalized collapses unknown or missing enum values to casual/curious.
func (t TrainingProfile) Normalized() TrainingProfile {
	if !t.CommunicationTone.IsValid() {
		t.CommunicationTone = ToneCasual
	}
	if !t.ApproachStyle.IsValid() {
		t.ApproachStyle = StyleCurious
	}
	return t
}

func (t TrainingProfile) IsConfigured() bool {
	return strings.TrimSpace(t.UserName) != ""
}

func (t *TrainingProfile) UnmarshalJSON(data []byte) error {
	type alias TrainingProfile
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = TrainingProfile(raw).Normalized()
	return nil
}
