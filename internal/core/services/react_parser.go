package services

import (
	"regexp"
	"strings"

	"github.com/manthysbr/localagent/internal/core/domain"
)

const (
	errBothAnswerAndAction = "Invalid Format: produced both a final answer and an action. Respond with either an Action or a Final Answer, not both."
	errMissingAction       = "Invalid Format: Missing 'Action:' after 'Thought:'"
	errMissingActionInput  = "Invalid Format: Missing 'Action Input:' after 'Action:'"
)

var (
	finalAnswerRe      = regexp.MustCompile(`(?is)Final\s*Answer\s*:`)
	actionRe           = regexp.MustCompile(`(?is)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyRe       = regexp.MustCompile(`(?is)Action\s*\d*\s*:`)
	actionInputOnlyRe  = regexp.MustCompile(`(?is)Action\s*\d*\s*Input\s*\d*\s*:`)
	observationRe      = regexp.MustCompile(`(?i)\n\s*Observation\s*:`)
	leadingThoughtRe   = regexp.MustCompile(`(?i)^\s*Thought\s*:\s*`)
	firstMarkerRe      = regexp.MustCompile(`(?i)(Action\s*\d*\s*:|Final\s*Answer\s*:)`)
	toolNameDecorChars = "`'\"[]*"
)

// trimHallucinatedObservation drops anything from the first "Observation:" line
// onwards. Observations are supplied by the loop, never by the model.
func trimHallucinatedObservation(completion string) string {
	if loc := observationRe.FindStringIndex(completion); loc != nil {
		return strings.TrimRight(completion[:loc[0]], " \t\r\n")
	}
	return strings.TrimRight(completion, " \t\r\n")
}

// parseReActOutput classifies one model completion as a final answer, an
// action, or unparsable. It never fails; unparsable output carries a reason
// that is fed back to the model as an observation.
func parseReActOutput(completion string) domain.ParseResult {
	text := trimHallucinatedObservation(completion)
	thought := extractThought(text)

	hasAnswer := finalAnswerRe.MatchString(text)
	if m := actionRe.FindStringSubmatch(text); m != nil {
		if hasAnswer {
			return domain.ParseResult{Kind: domain.ParseUnparsable, Thought: thought, Reason: errBothAnswerAndAction}
		}
		input := strings.Trim(strings.TrimSpace(m[2]), "\"")
		return domain.ParseResult{
			Kind:    domain.ParseAction,
			Thought: thought,
			Tool:    strings.TrimSpace(m[1]),
			Input:   input,
		}
	}

	if hasAnswer {
		locs := finalAnswerRe.FindAllStringIndex(text, -1)
		last := locs[len(locs)-1]
		return domain.ParseResult{
			Kind:    domain.ParseFinalAnswer,
			Thought: thought,
			Answer:  strings.TrimSpace(text[last[1]:]),
		}
	}

	reason := errMissingAction
	if actionOnlyRe.MatchString(text) && !actionInputOnlyRe.MatchString(text) {
		reason = errMissingActionInput
	}
	return domain.ParseResult{Kind: domain.ParseUnparsable, Thought: thought, Reason: reason}
}

// extractThought returns the free text preceding the first Action or Final
// Answer marker. The prompt already ends with "Thought: " so the model often
// omits the label.
func extractThought(text string) string {
	head := text
	if loc := firstMarkerRe.FindStringIndex(text); loc != nil {
		head = text[:loc[0]]
	}
	head = leadingThoughtRe.ReplaceAllString(head, "")
	return strings.TrimSpace(head)
}

// cleanToolName strips markdown and bracket decoration models like to add
// around tool names, e.g. "`web_search`" or "[web_search]".
func cleanToolName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, toolNameDecorChars)
	if i := strings.IndexAny(name, "\r\n"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}
