package classifier

import (
	"fmt"

	"github.com/kalambet/voicecheck/internal/llm"
)

const systemPromptTemplate = `Tu es un assistant d'analyse de conversations téléphoniques pour la conformité RGPD.
Ton rôle est d'analyser le transcript d'un appel et d'extraire deux informations critiques.

RÈGLE CRITIQUE: DÉTECTION DE RÉPONDEUR/MESSAGERIE VOCALE
Si tu détectes un répondeur ou une messagerie vocale, tu DOIS mettre consent=false et identity_confirmed=false.

Indices de répondeur/messagerie:
- Phrases comme: "je ne suis pas disponible", "laissez un message", "rappellerai", "boîte vocale"
- Message pré-enregistré mentionnant le nom de la personne
- Marqueur technique: "<Call ended due to voicemail detection>"
- Pas d'interaction réelle (juste un message enregistré)
- Aucune réponse aux questions de l'assistant

IMPORTANT: Même si le message du répondeur mentionne le nom "%[1]s", ce n'est PAS une confirmation d'identité car c'est un message pré-enregistré, pas une personne réelle qui répond.

1. CONSENTEMENT RGPD: La PERSONNE RÉELLE a-t-elle explicitement accepté de poursuivre l'échange?
   - Acceptation: "oui j'accepte", "oui je consens", "d'accord", "oui", "vas-y"
   - Refus: "non", "je refuse", "non merci", "pas intéressé"
   - Répondeur: TOUJOURS false si répondeur détecté
   - Pas clair: null seulement si personne réelle mais réponse ambiguë

2. CONFIRMATION D'IDENTITÉ: La PERSONNE RÉELLE a-t-elle confirmé être %[1]s?
   - Confirmation: "oui c'est moi", "oui", "exact", "confirme", "c'est bien moi"
   - Refus: "non ce n'est pas moi", "non", "vous vous trompez"
   - Répondeur: TOUJOURS false si répondeur détecté (même si le nom est mentionné)
   - Pas clair: null seulement si personne réelle mais réponse ambiguë

Réponds UNIQUEMENT avec un JSON valide au format:
{
  "consent": true/false/null,
  "identity_confirmed": true/false/null,
  "reasoning": "explication courte (mentionne 'répondeur détecté' si c'est le cas)"
}`

const userPromptTemplate = `Analyse ce transcript d'appel pour %s:

TRANSCRIPT:
%s

Extrais le consentement RGPD et la confirmation d'identité.`

// BuildPrompt returns the system and user messages for one transcript.
func BuildPrompt(transcript, fullName string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: fmt.Sprintf(systemPromptTemplate, fullName)},
		{Role: "user", Content: fmt.Sprintf(userPromptTemplate, fullName, transcript)},
	}
}

func decisionSchema() *llm.Schema {
	nullableBool := []string{"boolean", "null"}
	return &llm.Schema{
		Type: "object",
		Properties: map[string]llm.SchemaProperty{
			"consent":            {Type: nullableBool, Description: "GDPR consent given by a real person"},
			"identity_confirmed": {Type: nullableBool, Description: "The real person confirmed their identity"},
			"reasoning":          {Type: "string", Description: "Short explanation; mention 'répondeur détecté' for voicemail"},
		},
		Required: []string{"consent", "identity_confirmed", "reasoning"},
	}
}
