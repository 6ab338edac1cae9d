package normalizer

import "github.com/tidwall/gjson"

// FollowUpReply is the next message suggested by the collaborator.
type FollowUpReply struct {
	Message string `json:"follow_up_message"`
	Tips    string `json:"tips,omitempty"`
}

// ExtractFollowUp looks for the reply at its known locations: top-level
// follow_up_message, data.ai_analysis[0].follow_up_message, or a bare JSON
// string. ok is false when none of them holds a message.
func ExtractFollowUp(raw []byte) (FollowUpReply, bool) {
	if !gjson.ValidBytes(raw) {
		return FollowUpReply{}, false
	}
	root := gjson.ParseBytes(raw)

	if root.Type == gjson.String {
		if root.Str == "" {
			return FollowUpReply{}, false
		}
		return FollowUpReply{Message: root.Str}, true
	}

	if msg := text(root.Get("follow_up_message")); msg != "" {
		return FollowUpReply{Message: msg, Tips: text(root.Get("tips"))}, true
	}

	ai := aiAnalysis(root.Get("data.ai_analysis"))
	if msg := text(ai.Get("follow_up_message")); msg != "" {
		return FollowUpReply{Message: msg, Tips: text(ai.Get("tips"))}, true
	}

	return FollowUpReply{}, false
}
