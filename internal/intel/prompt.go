package intel

import (
	"fmt"
	"strings"

	"github.com/nexshop/storebot/internal/store"
)

const classifySystemPrompt = `You are an intent classifier for a store's customer-service channel.
Given a customer message and a list of known intents with example utterances,
answer with exactly one intent label from the list. If the message matches
none of the intents, answer with exactly NONE. Answer with the label only.`

const generateSystemPrompt = `You are a friendly customer-service assistant for an online store.
Answer the customer's message using only the store information provided.
Keep replies short and concrete. If the information needed is not present,
say so politely instead of inventing it.`

func buildClassifyPrompt(message string, examples []store.TrainingExample) string {
	var sb strings.Builder
	sb.WriteString("Known intents:\n")
	for _, ex := range examples {
		fmt.Fprintf(&sb, "- %s:\n", ex.Intent)
		for _, utterance := range ex.Examples {
			fmt.Fprintf(&sb, "  - %q\n", utterance)
		}
	}
	fmt.Fprintf(&sb, "\nCustomer message: %q\n", message)
	return sb.String()
}

func buildGeneratePrompt(message, storeContext string) string {
	var sb strings.Builder
	if strings.TrimSpace(storeContext) != "" {
		sb.WriteString("Store information:\n")
		sb.WriteString(storeContext)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Customer message: %q\n", message)
	return sb.String()
}
