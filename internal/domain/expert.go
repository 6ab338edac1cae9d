package domain

type Expert struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Data TrainingProfile `json:"data"`
}

func (e *Expert) IsConfigured() bool {
	if e == nil {
		return false
	}
	return e.Data.IsConfigured()
}
