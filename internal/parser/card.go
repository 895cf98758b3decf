package parser

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conorfennell/kindlenotes/internal/domain"
)

// cardMeta is the key-value block kept in an HTML comment after each card.
type cardMeta struct {
	Hash     string   `yaml:"hash"`
	Src      string   `yaml:"src"`
	Excluded bool     `yaml:"excluded"`
	Page     *flexInt `yaml:"page"`
	Location *flexInt `yaml:"location"`
}

// flexInt accepts both `location: 12` and `location: "12"`.
type flexInt int

func (i *flexInt) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", value.Line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number", value.Line, value.Value)
	}
	*i = flexInt(n)
	return nil
}

func (i *flexInt) intPtr() *int {
	if i == nil {
		return nil
	}
	v := int(*i)
	return &v
}

func decodeCard(lines []string) (domain.Flashcard, error) {
	lines = trimBlankLines(lines)

	var meta cardMeta
	if body, metaLines, ok := splitMeta(lines); ok {
		if err := yaml.Unmarshal([]byte(strings.Join(metaLines, "\n")), &meta); err != nil {
			return domain.Flashcard{}, err
		}
		lines = body
	}

	content, backside := lines, []string(nil)
	for i, line := range lines {
		if isDelimiter(line, backsideDelimiter) {
			content, backside = lines[:i], lines[i+1:]
			break
		}
	}

	card := domain.Flashcard{
		Hash:     strings.TrimSpace(meta.Hash),
		Content:  strings.TrimSpace(strings.Join(content, "\n")),
		Backside: strings.TrimSpace(strings.Join(backside, "\n")),
		Excluded: meta.Excluded,
		Page:     meta.Page.intPtr(),
		Location: meta.Location.intPtr(),
		Src:      domain.SourceUser,
	}
	switch domain.Source(strings.TrimSpace(meta.Src)) {
	case "", domain.SourceUser:
	case domain.SourceKindle:
		card.Src = domain.SourceKindle
	default:
		return domain.Flashcard{}, fmt.Errorf("unknown src %q", meta.Src)
	}
	return card, nil
}

// splitMeta separates a trailing <!-- ... --> block from the card body.
func splitMeta(lines []string) (body, meta []string, ok bool) {
	if len(lines) == 0 || !isDelimiter(lines[len(lines)-1], metaClose) {
		return lines, nil, false
	}
	for i := len(lines) - 2; i >= 0; i-- {
		if isDelimiter(lines[i], metaOpen) {
			return lines[:i], lines[i+1 : len(lines)-1], true
		}
	}
	return lines, nil, false
}

func trimBlankLines(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}
