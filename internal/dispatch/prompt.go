package dispatch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/randalmurphal/fleet/internal/journal"
)

// TokenBudget caps the estimated token count of a worker prompt.
const TokenBudget = 60000

// EstimateTokens approximates the token count of s as ⌈len(s)/4⌉.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// fileContent is one resolved relevant file ready for inclusion.
type fileContent struct {
	relPath string
	data    string
}

// resolveRelevantFiles expands the task's relevant_files patterns against
// the workspace root; the resolved paths keep their workspace-relative
// form. Patterns support ** via doublestar. Patterns matching nothing,
// and files that cannot be read, land in missing.
func resolveRelevantFiles(workspace string, patterns []string) (files []fileContent, missing []string) {
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(filepath.Join(workspace, pattern))
		if err != nil || len(matches) == 0 {
			missing = append(missing, pattern)
			continue
		}
		sort.Strings(matches)
		matched := false
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(workspace, m)
			if err != nil {
				rel = m
			}
			if seen[rel] {
				matched = true
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				continue
			}
			seen[rel] = true
			matched = true
			files = append(files, fileContent{relPath: rel, data: string(data)})
		}
		if !matched {
			missing = append(missing, pattern)
		}
	}
	return files, missing
}

// buildPrompt assembles the worker prompt for a located task. Relevant
// file contents are appended in pattern order; when the token budget is
// reached the remaining files are dropped from the tail and the omission
// is noted in the prompt so the worker knows the context is partial.
func buildPrompt(workspace string, loc *journal.Located) (string, Meta) {
	t := loc.Task
	proj := loc.Project
	var b strings.Builder

	fmt.Fprintf(&b, "# Task: %s\n\n## %s\n\n", t.ID, t.Title)

	b.WriteString("## Project\n\n")
	fmt.Fprintf(&b, "- Name: %s\n", proj.Name)
	if proj.Language != "" {
		fmt.Fprintf(&b, "- Language: %s\n", proj.Language)
	}
	if proj.TestCommand != "" {
		fmt.Fprintf(&b, "- Test command: %s\n", proj.TestCommand)
	}
	if proj.BuildCommand != "" {
		fmt.Fprintf(&b, "- Build command: %s\n", proj.BuildCommand)
	}
	if t.Milestone != "" {
		fmt.Fprintf(&b, "- Milestone: %s\n", t.Milestone)
	}
	b.WriteString("\n")

	if t.Description != "" {
		fmt.Fprintf(&b, "## Description\n\n%s\n\n", strings.TrimSpace(t.Description))
	}
	if t.Feature.Description != "" {
		fmt.Fprintf(&b, "## Feature\n\n%s\n\n", strings.TrimSpace(t.Feature.Description))
	}
	if len(t.Feature.AcceptanceCriteria) > 0 {
		b.WriteString("## Acceptance Criteria\n\n")
		for _, ac := range t.Feature.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", ac)
		}
		b.WriteString("\n")
	}

	if memory, err := os.ReadFile(proj.MemoryPath(workspace)); err == nil && len(memory) > 0 {
		fmt.Fprintf(&b, "## Project Instructions\n\n%s\n\n", strings.TrimSpace(string(memory)))
	}

	instructions := workerInstructions(proj.TestCommand)

	meta := Meta{}
	files, missing := resolveRelevantFiles(workspace, t.RelevantFiles)
	meta.FilesMissing = missing

	if len(files) > 0 {
		b.WriteString("## Relevant Files\n\n")
		sections := make([]string, len(files))
		for i, f := range files {
			sections[i] = fmt.Sprintf("### %s\n\n```\n%s\n```\n\n", f.relPath, strings.TrimRight(f.data, "\n"))
		}

		// When anything is dropped the omission note becomes part of the
		// prompt, so the selection re-runs with the note's worst-case
		// size reserved. The final prompt never exceeds the cap.
		included, trimmed := fitSections(b.String(), sections, "", instructions)
		if trimmed > 0 {
			included, trimmed = fitSections(b.String(), sections, omissionNote(len(files)), instructions)
		}
		for i := 0; i < included; i++ {
			b.WriteString(sections[i])
			meta.FilesIncluded = append(meta.FilesIncluded, files[i].relPath)
		}
		meta.FilesTrimmed = trimmed
		if trimmed > 0 {
			b.WriteString(omissionNote(trimmed))
		}
	}

	b.WriteString(instructions)

	prompt := b.String()
	meta.TokenEstimate = EstimateTokens(prompt)
	return prompt, meta
}

// fitSections returns how many leading sections fit under the token
// budget alongside the prompt prefix, a reserved suffix, and the trailing
// instructions. Sections past the first that does not fit are dropped.
func fitSections(prefix string, sections []string, reserve, instructions string) (included, trimmed int) {
	cur := prefix
	for i, s := range sections {
		if EstimateTokens(cur+s+reserve+instructions) > TokenBudget {
			return i, len(sections) - i
		}
		cur += s
	}
	return len(sections), 0
}

// omissionNote tells the worker how many relevant files were dropped.
func omissionNote(n int) string {
	return fmt.Sprintf("(%d relevant file(s) omitted to fit the context budget.)\n\n", n)
}

func workerInstructions(testCommand string) string {
	var b strings.Builder
	b.WriteString("## Instructions\n\n")
	b.WriteString("Implement the task described above. Work only inside this project directory.\n")
	if testCommand != "" {
		fmt.Fprintf(&b, "Verify your changes with: %s\n", testCommand)
	}
	b.WriteString("When done, print a one-paragraph summary of what changed.\n")
	return b.String()
}
