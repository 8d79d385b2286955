package translator

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"epub-translator/internal/placeholder"
)

// languageName resolves a BCP 47 tag to its English display name so
// prompts read "French" rather than "fr". Unparseable tags pass
// through unchanged.
func languageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Languages().Name(t); name != "" {
		return name
	}
	return tag
}

// buildSystemPrompt is the role instruction for the normal,
// placeholder-preserving phase.
func buildSystemPrompt(sourceLang, targetLang string, f placeholder.Format) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a professional translator. Translate the user's text from %s to %s.\n\n",
		languageName(sourceLang), languageName(targetLang))
	sb.WriteString("Strict requirements:\n")
	fmt.Fprintf(&sb, "1. Placeholders such as %s and %s stand for protected markup. Reproduce every placeholder exactly as written, keeping its number. Never translate, drop, add or renumber a placeholder.\n",
		f.Token(0), f.Token(1))
	sb.WriteString("2. Output only the translated text. No explanations, no notes, no surrounding quotes.\n")
	sb.WriteString("3. Preserve paragraph breaks.\n")
	return sb.String()
}

// buildPlainSystemPrompt is the role instruction for the
// token-alignment phase, where the text carries no placeholders.
func buildPlainSystemPrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf("You are a professional translator. Translate the user's text from %s to %s. "+
		"Output only the translated text, with paragraph breaks preserved. No explanations, no notes.",
		languageName(sourceLang), languageName(targetLang))
}

// buildUserPrompt assembles the per-chunk prompt. prevContext is the
// tail of the preceding chunk's translation, carried for terminology
// consistency; guidance is the validator's summary of what the last
// attempt got wrong.
func buildUserPrompt(chunkText, prevContext, guidance string) string {
	var sb strings.Builder
	if prevContext != "" {
		sb.WriteString("Preceding translation, for context only. Do not repeat or retranslate it:\n")
		sb.WriteString(prevContext)
		sb.WriteString("\n\n")
	}
	if guidance != "" {
		fmt.Fprintf(&sb, "Your previous attempt mishandled placeholders (%s). Reproduce each expected placeholder exactly once.\n\n", guidance)
	}
	sb.WriteString("Translate:\n")
	sb.WriteString(chunkText)
	return sb.String()
}
