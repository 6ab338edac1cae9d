package domain

import "encoding/json"

// Backup is the export document. Import accepts the same shape. Experts and
// ActiveExpertID are optional; older backups only carry the active trainingData.
type Backup struct {
	TrainingData   TrainingProfile `json:"trainingData"`
	History        []HistoryEntry  `json:"history"`
	Settings       BackupSettings  `json:"settings"`
	Experts        []Expert        `json:"experts,omitempty"`
	ActiveExpertID string          `json:"activeExpertId,omitempty"`
}

type BackupSettings struct {
	Webhook string `json:"n8nWebhook"`
}

// UnmarshalJSON also accepts webhookUrl as the key.
func (s *BackupSettings) UnmarshalJSON(data []byte) error {
	var raw struct {
		Webhook    string `json:"n8nWebhook"`
		WebhookURL string `json:"webhookUrl"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Webhook = raw.Webhook
	if s.Webhook == "" {
		s.Webhook = raw.WebhookURL
	}
	return nil
}
