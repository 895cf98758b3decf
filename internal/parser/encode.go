package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/conorfennell/kindlenotes/internal/domain"
)

var plainScalar = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_+/=.\-]*$`)

// Encode renders a book in its canonical document form. Decoding the output
// and encoding it again yields the same bytes. Documents that are not in
// canonical form, such as hand-written front-matter with unquoted values,
// are rewritten rather than reproduced byte for byte.
func Encode(book domain.Book) string {
	var sb strings.Builder
	sb.WriteString(frontMatterDelimiter + "\n")
	if book.ID != "" {
		writeField(&sb, "id", scalar(book.ID))
	}
	writeField(&sb, "name", strconv.Quote(book.Name))
	if book.Author != "" {
		writeField(&sb, "author", strconv.Quote(book.Author))
	}
	if book.Photo != "" {
		writeField(&sb, "photo", strconv.Quote(book.Photo))
	}
	if book.FlashcardsPerStudySession > 0 {
		writeField(&sb, "flashcardsPerStudySession", strconv.Itoa(book.FlashcardsPerStudySession))
	}
	sb.WriteString(frontMatterDelimiter + "\n")

	for _, card := range book.Flashcards {
		encodeCard(&sb, card)
	}
	return sb.String()
}

// EncodeCard renders a single card block.
func EncodeCard(card domain.Flashcard) string {
	var sb strings.Builder
	encodeCard(&sb, card)
	return sb.String()
}

func encodeCard(sb *strings.Builder, card domain.Flashcard) {
	sb.WriteString("\n" + cardDelimiter + "\n\n")
	sb.WriteString(strings.TrimSpace(card.Content) + "\n")

	if backside := strings.TrimSpace(card.Backside); backside != "" {
		sb.WriteString("\n" + backsideDelimiter + "\n\n")
		sb.WriteString(backside + "\n")
	}

	var meta strings.Builder
	if card.Hash != "" {
		writeField(&meta, "hash", scalar(card.Hash))
	}
	if card.Src == domain.SourceKindle {
		writeField(&meta, "src", string(domain.SourceKindle))
	}
	if card.Excluded {
		writeField(&meta, "excluded", "true")
	}
	if card.Page != nil {
		writeField(&meta, "page", strconv.Itoa(*card.Page))
	}
	if card.Location != nil {
		writeField(&meta, "location", strconv.Itoa(*card.Location))
	}
	if meta.Len() > 0 {
		sb.WriteString("\n" + metaOpen + "\n")
		sb.WriteString(meta.String())
		sb.WriteString(metaClose + "\n")
	}
}

func writeField(sb *strings.Builder, key, value string) {
	sb.WriteString(key)
	sb.WriteString(": ")
	sb.WriteString(value)
	sb.WriteString("\n")
}

// scalar leaves identifiers bare and quotes anything YAML could misread.
func scalar(s string) string {
	switch strings.ToLower(s) {
	case "null", "true", "false", "yes", "no", "on", "off":
		return strconv.Quote(s)
	}
	if plainScalar.MatchString(s) {
		return s
	}
	return strconv.Quote(s)
}
