package llm

import (
	"fmt"
	"strings"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/internal/protocols"
)

const responseFormat = `**RESPONSE FORMAT:**
Your response MUST be a JSON object with a single key "responses" which is an array of objects. Each object must have a "text" field and an "awaits_response" boolean.`

const callAction = `- 'call_emergency_contact': Use this ONLY when the user explicitly asks you to call their emergency contact.`

// BuildPrompt renders the dialogue prompt for a transcript. A nil protocol
// selects the generic assessment prompt.
func BuildPrompt(transcript []entities.Message, protocol *entities.Protocol, assets []protocols.Asset) string {
	history := formatHistory(transcript)

	if protocol == nil {
		return genericPrompt(history)
	}
	return protocolPrompt(history, protocol, assets)
}

func formatHistory(transcript []entities.Message) string {
	lines := make([]string, 0, len(transcript))
	for _, m := range transcript {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return strings.Join(lines, "\n")
}

func protocolPrompt(history string, p *entities.Protocol, assets []protocols.Asset) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are LifeLine, an authoritative and adaptable emergency AI assistant. A situation has been identified as '%s'.\n", p.Name)
	b.WriteString("Your primary goal is to be a helpful, intelligent, and flexible guide. You are not a robot that just reads a list.\n\n")

	b.WriteString("**Core Instruction:**\n")
	b.WriteString("Your most important job is to listen to the user. If they ask to skip ahead, ask about a specific procedure (e.g., \"how do I do compressions?\"), or seem to be in a later stage of the emergency, you MUST adapt. ")
	b.WriteString("Jump directly to the most relevant step in the protocol instead of following the steps in a rigid, linear order. Provide the most helpful information immediately based on the user's request.\n\n")

	b.WriteString("**Conversation History:**\n---\n")
	b.WriteString(history)
	b.WriteString("\n---\n\n")

	b.WriteString("**Medical Protocol & Guidelines:**\n")
	b.WriteString("Use the following protocol as your guide. The numbers are for reference, not a strict sequence you must follow if the user's needs dictate otherwise.\n---\n")
	fmt.Fprintf(&b, "PROTOCOL NAME: %s\nSTEPS:\n", p.Name)
	for i, step := range p.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\nCRITICAL SIGNS TO WATCH FOR:\n")
	for _, sign := range p.WarningSigns {
		fmt.Fprintf(&b, "- %s\n", sign)
	}
	b.WriteString("---\n\n")

	if len(assets) > 0 {
		b.WriteString("**Available Visual Aids:**\n")
		b.WriteString("You can show a visual aid by including its key in your response.\n")
		for _, a := range assets {
			fmt.Fprintf(&b, "- '%s': %s\n", a.Key, a.Hint)
		}
		b.WriteString("\n")
	}

	b.WriteString("**Available Actions:**\n")
	b.WriteString("You can trigger a real-world action by including an 'action' key in your response.\n")
	b.WriteString(callAction)
	b.WriteString("\n\n")

	b.WriteString(responseFormat)
	b.WriteString(" It may optionally include an \"asset_key\" or \"action\".\n")
	b.WriteString(`- Example with visual: {"text": "Start chest compressions, like this.", "awaits_response": true, "asset_key": "cpr_compressions"}` + "\n")
	b.WriteString(`- Example with action: {"text": "Okay, calling them now.", "awaits_response": false, "action": "call_emergency_contact"}` + "\n\n")

	b.WriteString("Given all of the above, and paying close attention to the user's last message, what is the most helpful and relevant response?")
	return b.String()
}

func genericPrompt(history string) string {
	var b strings.Builder

	b.WriteString("You are LifeLine, an authoritative emergency AI. A situation could not be automatically categorized. ")
	b.WriteString("Your goal is to take control, assess the situation, and provide calm, clear first aid guidance.\n\n")

	b.WriteString("**Available Actions:**\n")
	b.WriteString(callAction)
	b.WriteString("\n\n")

	b.WriteString(responseFormat)
	b.WriteString(" It can optionally include an \"action\".\n\n")

	b.WriteString("**Conversation History:**\n")
	b.WriteString(history)
	b.WriteString("\n\nBased on the history, what do you need to say?")
	return b.String()
}
