package enrichment

import (
	"fmt"

	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/util"
)

const (
	photoUnavailable = "Análise de foto não disponível"
	photoFailed      = "A foto de perfil não pôde ser analisada em detalhe. Recomenda-se observar manualmente elementos como: expressão facial, ambiente, vestimenta e postura para identificar pontos de conexão."
)

var fallbackOpportunities = []string{
	"Potencial interesse em crescimento de presença digital",
	"Possível necessidade de ferramentas de produtividade",
	"Abertura para networking profissional",
	"Interesse em conteúdo educacional do nicho",
}

const fallbackGuide = `<h4>Fase 1: Rapport</h4>
<ul>
<li>Mencione algo específico do perfil</li>
<li>Faça uma pergunta aberta</li>
<li>Demonstre interesse genuíno</li>
</ul>
<h4>Fase 2: Descoberta</h4>
<ul>
<li>Identifique dores e desafios</li>
<li>Entenda o momento atual</li>
<li>Mapeie prioridades</li>
</ul>
<h4>Fase 3: Conexão</h4>
<ul>
<li>Compartilhe experiência similar</li>
<li>Posicione-se como aliado</li>
<li>Crie curiosidade</li>
</ul>
<h4>Fase 4: Apresentação</h4>
<ul>
<li>Peça permissão</li>
<li>Foque em benefícios</li>
<li>Use prova social</li>
</ul>`

const fallbackSummary = `<p><strong>Perfil:</strong> @%s apresenta potencial para abordagem comercial com base nos dados disponíveis.</p>
<p><strong>Estratégia:</strong> Abordagem consultiva com foco em agregar valor antes de apresentar ofertas.</p>
<div class="key-points">
<h5>Pontos-Chave</h5>
<ul>
<li>Personalizar abordagem com dados do perfil</li>
<li>Construir relacionamento antes de vender</li>
<li>Identificar dores específicas na conversa</li>
<li>Oferecer valor genuíno primeiro</li>
</ul>
</div>`

const fallbackScript = `<h4>1. Primeira Mensagem (Quebra-gelo)</h4>
<p>Objetivo: Criar conexão genuína sem parecer vendedor</p>
<div class="message-example">"%s"</div>
<h4>2. Segunda Mensagem</h4>
<p>Objetivo: Identificar necessidades</p>
<div class="message-example">"Legal! E como está sendo sua jornada? Quais os maiores desafios que você tem enfrentado?"</div>
<h4>3. Terceira Mensagem</h4>
<p>Objetivo: Apresentar valor</p>
<div class="message-example">"Entendo totalmente! Passei por algo parecido. Descobri algumas estratégias que me ajudaram muito. Posso compartilhar com você?"</div>
<h4>4. Quarta Mensagem</h4>
<p>Objetivo: Propor próximo passo</p>
<div class="message-example">"Que bom que faz sentido pra você! Que tal a gente marcar uma call rápida pra eu te mostrar em detalhe? Sem compromisso."</div>`

// FallbackStrategy builds a usable strategy from profile data alone. It is
// used whenever the model is unavailable or returns something unusable.
func FallbackStrategy(p domain.ScrapedProfile, photo string) Strategy {
	name := util.FirstNonEmpty(p.FullName, p.Username)

	bioPoint := "Bio não disponível para análise"
	opener := "Gostei do seu conteúdo!"
	if p.Bio != "" {
		bioPoint = `Bio menciona: "` + headRunes(p.Bio, 50) + `..."`
		opener = "Curti especialmente " + headRunes(p.Bio, 30) + "..."
	}

	accountPoint := "Conta pessoal"
	if p.IsBusiness {
		accountPoint = "Conta business - potencial profissional"
	}

	sitePoint := "Sem website externo"
	if p.Website != "" {
		sitePoint = "Website disponível: " + p.Website
	}

	first := fmt.Sprintf("Oi %s! Vi seu perfil e achei muito interessante seu trabalho. %s Posso te perguntar uma coisa?", name, opener)

	return Strategy{
		PhotoAnalysis: photo,
		Gender:        string(domain.GenderUnknown),
		ConnectionPoints: []string{
			fmt.Sprintf("Perfil @%s com %s seguidores", p.Username, p.Followers),
			bioPoint,
			fmt.Sprintf("Ativo no Instagram com %s publicações", p.Posts),
			accountPoint,
			sitePoint,
		},
		SalesOpportunities: append([]string(nil), fallbackOpportunities...),
		Messages: []domain.Message{
			{Label: "Quebra-gelo", Text: first},
		},
		ApproachScript:    fmt.Sprintf(fallbackScript, first),
		ConversationGuide: fallbackGuide,
		ExecutiveSummary:  fmt.Sprintf(fallbackSummary, p.Username),
	}
}

func headRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
