package workspace

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/util"
)

const (
	tipNoReply      = "Resposta gerada localmente. Configure o webhook para respostas personalizadas pela IA."
	tipTransportErr = "Resposta gerada localmente devido a erro de conexão."
)

var localReplies = []string{
	"Interessante, %s! Me conta mais sobre isso...",
	"Entendi! E como você está lidando com isso atualmente?",
	"Faz sentido! Já tentou alguma abordagem diferente?",
	"Legal! O que você está buscando como resultado ideal?",
}

// FollowUpResult is the next message to send. Local marks a templated reply
// produced without the collaborator.
type FollowUpResult struct {
	Message string `json:"message"`
	Tips    string `json:"tips,omitempty"`
	Local   bool   `json:"local"`
}

func localReply(profile domain.LeadProfile, pick func(n int) int) string {
	tmpl := localReplies[pick(len(localReplies))]
	if !strings.Contains(tmpl, "%s") {
		return tmpl
	}
	return fmt.Sprintf(tmpl, util.FirstNonEmpty(util.FirstName(profile.FullName), profile.Username))
}

func randomPick(n int) int {
	return rand.IntN(n)
}
