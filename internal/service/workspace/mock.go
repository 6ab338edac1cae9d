package workspace

import (
	"fmt"

	"github.com/kapu/lead-analyzer-go/internal/domain"
)

// MockResult is the sample analysis shown while the webhook is unreachable.
// It is flagged Demo so callers can tell the operator.
func MockResult(username string) domain.AnalysisResult {
	r := domain.AnalysisResult{
		Profile: domain.LeadProfile{
			Username:   username,
			FullName:   "Nome do Usuário",
			Bio:        "Empreendedor Digital | Ajudo pessoas a conquistarem liberdade financeira através do marketing digital 🚀\n📍 São Paulo, SP\n👇 Acesse meu conteúdo gratuito",
			Followers:  "15.2K",
			Following:  "892",
			Posts:      "347",
			ProfilePic: "https://via.placeholder.com/150",
			IsBusiness: true,
			Category:   "Empreendedor",
			Website:    "https://linktr.ee/exemplo",
		},
		PhotoAnalysis: "A foto de perfil mostra uma pessoa sorridente em ambiente profissional, transmitindo confiança e acessibilidade. O enquadramento frontal e iluminação adequada sugerem preocupação com a imagem pessoal. O fundo neutro indica profissionalismo.",
		ConnectionPoints: []string{
			"Interesse em empreendedorismo digital - tema central do perfil",
			"Localização em São Paulo - possível menção a eventos locais",
			"Foco em liberdade financeira - dor comum do público",
			"Presença ativa em redes sociais - oportunidade de engajamento",
			"Oferece conteúdo gratuito - abertura para relacionamento",
		},
		SalesOpportunities: []string{
			"Alta probabilidade de interesse em ferramentas de automação",
			"Potencial cliente para mentorias de escala",
			"Possível interesse em networking com outros empreendedores",
			"Abertura para parcerias e colaborações",
			"Busca por otimização de processos digitais",
		},
		ApproachScript:    fmt.Sprintf(mockApproachScript, username),
		ConversationGuide: mockConversationGuide,
		ExecutiveSummary:  fmt.Sprintf(mockExecutiveSummary, username),
		Demo:              true,
	}
	r.EnsureDefaults()
	return r
}

const mockApproachScript = `<h4>1. Primeira Mensagem (Quebra-gelo)</h4>
<p>Objetivo: Criar conexão genuína sem parecer vendedor</p>
<div class="message-example">"E aí, %s! Vi seu conteúdo sobre empreendedorismo digital e achei muito massa. Qual foi o maior desafio que você enfrentou até aqui?"</div>
<h4>2. Segunda Mensagem (Após resposta)</h4>
<p>Objetivo: Aprofundar a conversa e identificar dores</p>
<div class="message-example">"Te entendo totalmente! Isso é super comum no nosso mercado. O que você tá fazendo atualmente pra resolver isso?"</div>
<h4>3. Terceira Mensagem (Transição)</h4>
<p>Objetivo: Apresentar possibilidade de ajuda</p>
<div class="message-example">"Recentemente descobri algo que me ajudou muito com isso. Posso te contar mais se tiver interesse, sem compromisso."</div>`

const mockConversationGuide = `<h4>Fase 1: Rapport (1-2 mensagens)</h4>
<ul><li>Elogie algo específico do conteúdo ou perfil</li><li>Faça uma pergunta aberta sobre a jornada</li><li>Não mencione vendas ou produtos</li></ul>
<h4>Fase 2: Descoberta (2-3 mensagens)</h4>
<ul><li>Identifique as principais dores e desafios</li><li>Descubra o que já foi tentado</li></ul>
<h4>Fase 3: Apresentação (2-3 mensagens)</h4>
<ul><li>Peça permissão antes de apresentar</li><li>Ofereça próximo passo de baixo compromisso</li></ul>`

const mockExecutiveSummary = `<p><strong>Perfil:</strong> @%s apresenta características de um empreendedor digital em crescimento, com foco em educação financeira e marketing digital.</p>
<p><strong>Estratégia Recomendada:</strong> Abordagem consultiva focada em agregar valor antes de apresentar qualquer oferta.</p>`
