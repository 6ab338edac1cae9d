package workspace

import (
	"strings"

	"github.com/kapu/lead-analyzer-go/internal/constants"
	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/util"
)

// Chip is one clickable suggestion in the composer. Text is inserted, Label is shown.
type Chip struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Suggestions are the composer options derived from one analysis.
type Suggestions struct {
	Greetings []string `json:"greetings"`
	Hooks     []Chip   `json:"hooks"`
	Interests []Chip   `json:"interests"`
	Questions []string `json:"questions"`
}

// ComposeRequest holds the parts picked in the composer. Empty parts are skipped.
type ComposeRequest struct {
	Greeting string `json:"greeting"`
	Hook     string `json:"hook"`
	Interest string `json:"interest"`
	Question string `json:"question"`
}

var defaultGreetings = []string{
	"Oi {nome}, tudo bem?",
	"Olá {nome}!",
	"E aí {nome}, como vai?",
	"Oi {nome}!",
}

var defaultQuestions = []string{
	"Como você começou nisso?",
	"O que mais te motiva nessa área?",
	"Qual o seu maior desafio hoje?",
	"Posso te fazer uma pergunta rápida?",
}

// BuildSuggestions derives hook and interest chips from the analyzed profile.
func BuildSuggestions(result domain.AnalysisResult) Suggestions {
	s := Suggestions{
		Greetings: append([]string{}, defaultGreetings...),
		Hooks:     hooks(result.Profile),
		Interests: []Chip{},
		Questions: append([]string{}, defaultQuestions...),
	}
	for _, in := range result.LeadInterests {
		text := in.Chip()
		if text == "" {
			continue
		}
		label := text
		if in.Category != "" && in.Detail != "" {
			label = in.Category + ": " + in.Detail
		}
		s.Interests = append(s.Interests, Chip{Label: label, Text: text})
	}
	return s
}

func hooks(p domain.LeadProfile) []Chip {
	var out []Chip
	if bio := strings.TrimSpace(p.Bio); bio != "" {
		out = append(out, Chip{
			Label: "📝 Bio",
			Text:  "vi que " + headRunes(bio, constants.StringLimits.BioHook) + "...",
		})
	}
	if p.Category != "" && p.Category != "Pessoal" {
		out = append(out, Chip{
			Label: "💼 " + p.Category,
			Text:  "vi que trabalha com " + strings.ToLower(p.Category) + ",",
		})
	}
	if util.ParseCount(p.Followers) > int64(constants.ComposerConfig.LargeAudience) {
		out = append(out, Chip{
			Label: "👥 Audiência",
			Text:  "vi que tem uma boa audiência por aqui,",
		})
	}
	if name := util.FirstName(p.FullName); name != "" {
		out = append(out, Chip{
			Label: "👋 Boas-vindas",
			Text:  "vi que me seguiu, seja bem-vindo por aqui " + name + "!",
		})
	}
	out = append(out, Chip{Label: "👀 Perfil", Text: "vi seu perfil por aqui,"})
	return out
}

// Compose joins the picked parts with single spaces and fills in the lead's first name.
func Compose(req ComposeRequest, profile domain.LeadProfile) string {
	name := util.FirstName(profile.FullName)
	if name == "" {
		name = constants.ComposerConfig.DefaultName
	}

	parts := make([]string, 0, 4)
	for _, p := range []string{req.Greeting, req.Hook, req.Interest, req.Question} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, strings.ReplaceAll(p, constants.ComposerConfig.NamePlaceholder, name))
		}
	}
	return strings.Join(parts, " ")
}

func headRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
