// Package budget builds the background context block sent with every chat
// request, sized to what the target model can take.
//
// Build is a pure function: the same inputs always produce byte-identical
// output. Items keep the order the caller gives them, which is expected to be
// most recent or most relevant first.
package budget

import (
	"fmt"
	"strings"

	"github.com/nachoal/agency-chat/capability"
)

// Section headings and notices, in the language the assistants answer in.
const (
	headingProfile        = "## Perfil"
	headingDocuments      = "## Documentos"
	headingProjects       = "## Projetos"
	headingCompletedTasks = "## Tarefas concluídas"
	headingPendingTasks   = "## Tarefas pendentes"

	noticeNoneSelected = "Nenhum documento selecionado para esta conversa."
	noticeNotShown     = "(%d não exibidos)"
)

// completedStatuses is the allow-list of task statuses counted as done
var completedStatuses = map[string]bool{
	"concluída":  true,
	"concluida":  true,
	"concluído":  true,
	"concluido":  true,
	"finalizada": true,
	"finalizado": true,
	"entregue":   true,
	"done":       true,
	"completed":  true,
	"complete":   true,
}

// Field is one labelled identity/profile value
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Profile is the identity snapshot of the client or ads account
type Profile struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Item is a candidate piece of background context
type Item struct {
	ID     string `json:"id"`
	Kind   string `json:"kind,omitempty"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Status string `json:"status,omitempty"`
}

// Input is the full pool of candidate context for one request
type Input struct {
	Profile   Profile `json:"profile"`
	Documents []Item  `json:"documents"`
	Projects  []Item  `json:"projects"`
	Tasks     []Item  `json:"tasks"`
}

// IsCompleted reports whether a task status is in the completed allow-list
func IsCompleted(status string) bool {
	return completedStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// Build renders the context block for model. An empty selectedDocumentIDs
// means no documents are included, never all of them.
func Build(caps capability.Lookup, model string, in Input, selectedDocumentIDs []string) string {
	return BuildWithLimits(ForHistoryLength(caps.OptimalHistoryLength(model)), in, selectedDocumentIDs)
}

// BuildWithLimits renders the context block with explicit caps
func BuildWithLimits(limits Limits, in Input, selectedDocumentIDs []string) string {
	var sections []string

	if s := renderProfile(in.Profile); s != "" {
		sections = append(sections, s)
	}
	if s := renderDocuments(limits, in.Documents, selectedDocumentIDs); s != "" {
		sections = append(sections, s)
	}
	if s := renderProjects(limits, in.Projects); s != "" {
		sections = append(sections, s)
	}

	completed, pending := partitionTasks(in.Tasks)
	if s := renderTasks(headingCompletedTasks, completed, limits.MaxCompletedTasks); s != "" {
		sections = append(sections, s)
	}
	if s := renderTasks(headingPendingTasks, pending, limits.MaxPendingTasks); s != "" {
		sections = append(sections, s)
	}

	return strings.Join(sections, "\n\n")
}

func renderProfile(p Profile) string {
	var lines []string
	if name := strings.TrimSpace(p.Name); name != "" {
		lines = append(lines, "Nome: "+name)
	}
	for _, f := range p.Fields {
		value := strings.TrimSpace(f.Value)
		if value == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", f.Label, value))
	}
	if len(lines) == 0 {
		return ""
	}
	return headingProfile + "\n" + strings.Join(lines, "\n")
}

func renderDocuments(limits Limits, docs []Item, selectedIDs []string) string {
	if len(docs) == 0 {
		return ""
	}

	selected := make(map[string]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = true
	}

	var chosen []Item
	for _, d := range docs {
		if selected[d.ID] {
			chosen = append(chosen, d)
		}
	}

	var b strings.Builder
	b.WriteString(headingDocuments)
	if len(chosen) == 0 {
		b.WriteString("\n")
		b.WriteString(noticeNoneSelected)
		return b.String()
	}

	shown := chosen
	if limits.MaxDocuments >= 0 && len(shown) > limits.MaxDocuments {
		shown = shown[:limits.MaxDocuments]
	}
	for _, d := range shown {
		body, _ := Truncate(StripMarkup(d.Body), limits.MaxDocumentCharacters)
		fmt.Fprintf(&b, "\n### %s\n%s", strings.TrimSpace(d.Title), body)
	}
	if hidden := len(chosen) - len(shown); hidden > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, noticeNotShown, hidden)
	}
	return b.String()
}

func renderProjects(limits Limits, projects []Item) string {
	if len(projects) == 0 {
		return ""
	}

	shown := projects
	if limits.MaxProjects >= 0 && len(shown) > limits.MaxProjects {
		shown = shown[:limits.MaxProjects]
	}

	var b strings.Builder
	b.WriteString(headingProjects)
	for _, p := range shown {
		b.WriteString("\n")
		b.WriteString(itemLine(p))
		if desc := StripMarkup(p.Body); desc != "" {
			desc, _ = Truncate(desc, limits.MaxDocumentCharacters)
			b.WriteString(": ")
			b.WriteString(desc)
		}
	}
	if hidden := len(projects) - len(shown); hidden > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, noticeNotShown, hidden)
	}
	return b.String()
}

func renderTasks(heading string, tasks []Item, max int) string {
	if len(tasks) == 0 {
		return ""
	}

	shown := tasks
	if max >= 0 && len(shown) > max {
		shown = shown[:max]
	}

	var b strings.Builder
	b.WriteString(heading)
	for _, t := range shown {
		b.WriteString("\n")
		b.WriteString(itemLine(t))
	}
	if hidden := len(tasks) - len(shown); hidden > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, noticeNotShown, hidden)
	}
	return b.String()
}

func partitionTasks(tasks []Item) (completed, pending []Item) {
	for _, t := range tasks {
		if IsCompleted(t.Status) {
			completed = append(completed, t)
		} else {
			pending = append(pending, t)
		}
	}
	return completed, pending
}

func itemLine(it Item) string {
	line := "- " + strings.TrimSpace(it.Title)
	if status := strings.TrimSpace(it.Status); status != "" {
		line += " [" + status + "]"
	}
	return line
}
